package pipeline

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/adna-downsample/internal/genofile"
	"github.com/inodb/adna-downsample/internal/runlog"
)

// Output describes a file written for one step.
type Output struct {
	Step    Step
	Path    string
	LogPath string
	// LogErr is set when the run log could not be written. The data file
	// is kept regardless.
	LogErr error
}

// WriteOutputs writes every step of res to its derived path, each followed
// by its run log. input and out are used for naming (see OutputPaths);
// command is recorded in the run logs.
func (p *Pipeline) WriteOutputs(f *genofile.File, res *Result, input, out, command string) ([]Output, error) {
	downsampled, haploid := OutputPaths(input, out, p.opts)

	var outputs []Output
	for _, step := range res.Steps {
		path := downsampled
		if step.Operation == OpPseudoHaploid {
			path = haploid
		}

		if err := genofile.WriteFile(path, f.Header, f.Schema, step.Loci, step.Note); err != nil {
			return outputs, fmt.Errorf("write %s output: %w", step.Operation, err)
		}
		p.logger.Info("wrote output", zap.String("operation", string(step.Operation)), zap.String("path", path))

		o := Output{Step: step, Path: path}
		if p.opts.SkipRunLog {
			outputs = append(outputs, o)
			continue
		}

		o.LogPath = runlog.PathFor(path)
		o.LogErr = runlog.Write(o.LogPath, runlog.Entry{
			Time:        time.Now(),
			Command:     command,
			Description: Describe(step.Operation, p.opts.Percentage),
			Initial:     res.Initial,
			Processed:   step.Stats,
		})
		if o.LogErr != nil {
			p.logger.Warn("could not write run log", zap.String("path", o.LogPath), zap.Error(o.LogErr))
		}
		outputs = append(outputs, o)
	}

	return outputs, nil
}
