// Package render turns an asset-complete script into the final video by
// running the external renderer with the script as its props file.
package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"contentfactory/internal/config"
	"contentfactory/internal/fileutil"
	"contentfactory/internal/logging"
	"contentfactory/internal/script"
	"contentfactory/internal/services"
	"contentfactory/internal/stage"
	"contentfactory/internal/store"
)

const stageName = "render"

const (
	// maxLogLine bounds one logged renderer line; longer lines are drained
	// unlogged.
	maxLogLine = 1024 * 1024
	// defaultWaitDelay bounds how long Wait lingers for output after the
	// renderer process group is killed.
	defaultWaitDelay = 5 * time.Second
)

// Placeholders recognised in a configured renderer command.
const (
	placeholderProps       = "{props}"
	placeholderOutput      = "{output}"
	placeholderComposition = "{composition}"
)

// Renderer runs the video renderer for one job.
type Renderer struct {
	cfg       config.Render
	outputDir string
	logger    *slog.Logger
	waitDelay time.Duration
}

// New builds a Renderer from the render config and the output directory.
func New(cfg config.Render, outputDir string, logger *slog.Logger) *Renderer {
	return &Renderer{
		cfg:       cfg,
		outputDir: outputDir,
		logger:    logging.NewComponentLogger(logger, stageName),
		waitDelay: defaultWaitDelay,
	}
}

// SetLogger swaps the logger, typically for a job-scoped one.
func (r *Renderer) SetLogger(logger *slog.Logger) {
	r.logger = logging.NewComponentLogger(logger, stageName)
}

// PropsPath is where the script for jobID is written before rendering.
func (r *Renderer) PropsPath(jobID int64) string {
	return filepath.Join(r.outputDir, "props", fmt.Sprintf("job_%d.json", jobID))
}

// OutputPath is where the final video for jobID lands.
func (r *Renderer) OutputPath(jobID int64) string {
	return filepath.Join(r.outputDir, fmt.Sprintf("job_%d_final.mp4", jobID))
}

// Prepare checks the job is asset-complete and carries a script.
func (r *Renderer) Prepare(_ context.Context, unit *stage.Unit) error {
	if err := stage.RequireStatus(stageName, unit.Job, store.StatusAudioGen, store.StatusRenderComplete); err != nil {
		return err
	}
	_, err := stage.ParseScript(stageName, unit.Job)
	return err
}

// Execute renders the job's stored script.
func (r *Renderer) Execute(ctx context.Context, unit *stage.Unit) (store.StageResult, error) {
	s, err := stage.ParseScript(stageName, unit.Job)
	if err != nil {
		return store.StageResult{}, err
	}
	out, err := r.Render(ctx, unit.JobID(), s)
	if err != nil {
		return store.StageResult{}, err
	}
	return store.StageResult{
		Status:    store.StatusRenderComplete,
		VideoPath: stage.StringPtr(out),
	}, nil
}

// HealthCheck reports whether the renderer binary and project are present.
func (r *Renderer) HealthCheck(context.Context) stage.Health {
	args := r.command("", "")
	if _, err := exec.LookPath(args[0]); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found on PATH", args[0]))
	}
	if info, err := os.Stat(r.cfg.ProjectDir); err != nil || !info.IsDir() {
		return stage.Unhealthy(stageName, fmt.Sprintf("project dir %s missing", r.cfg.ProjectDir))
	}
	return stage.Healthy(stageName)
}

// Render writes the props file, runs the renderer and returns the video path.
func (r *Renderer) Render(ctx context.Context, jobID int64, s *script.Script) (string, error) {
	raw, err := s.Marshal()
	if err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "encode props", "Script could not be encoded", err)
	}
	propsPath := r.PropsPath(jobID)
	if err := os.MkdirAll(filepath.Dir(propsPath), 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "create props dir", propsPath, err)
	}
	if err := fileutil.WriteAtomic(propsPath, []byte(raw), 0o644); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "write props", propsPath, err)
	}

	output := r.OutputPath(jobID)
	args := r.command(propsPath, output)
	if _, err := exec.LookPath(args[0]); err != nil {
		return "", services.Wrap(services.ErrConfiguration, stageName, "locate renderer",
			fmt.Sprintf("%s not found on PATH", args[0]), err)
	}

	if r.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	r.logger.Info("renderer starting",
		logging.String(logging.FieldEventType, "render_start"),
		logging.String("command", strings.Join(args, " ")),
		logging.String("props", propsPath),
		logging.String("output", output),
	)
	if err := r.run(ctx, args); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, stageName, "run renderer",
				fmt.Sprintf("Renderer exceeded %ds", r.cfg.TimeoutSeconds), err)
		}
		return "", services.Wrap(services.ErrExternalTool, stageName, "run renderer", "Renderer failed", err)
	}
	r.logger.Info("render complete",
		logging.String(logging.FieldEventType, "render_complete"),
		logging.String("output", output),
	)
	return output, nil
}

// command builds the renderer argv. A configured command may reference
// {props}, {output} and {composition}; without placeholders the three values
// are appended the way the default remotion invocation expects.
func (r *Renderer) command(propsPath, output string) []string {
	if len(r.cfg.Command) == 0 {
		return []string{
			"npx", "remotion", "render", "src/index.ts",
			r.cfg.Composition, output, "--props=" + propsPath,
		}
	}

	replacer := strings.NewReplacer(
		placeholderProps, propsPath,
		placeholderOutput, output,
		placeholderComposition, r.cfg.Composition,
	)
	args := make([]string, 0, len(r.cfg.Command)+3)
	substituted := false
	for _, arg := range r.cfg.Command {
		if strings.Contains(arg, placeholderProps) || strings.Contains(arg, placeholderOutput) || strings.Contains(arg, placeholderComposition) {
			substituted = true
		}
		args = append(args, replacer.Replace(arg))
	}
	if !substituted {
		args = append(args, r.cfg.Composition, output, "--props="+propsPath)
	}
	return args
}

func (r *Renderer) run(ctx context.Context, args []string) error {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.cfg.ProjectDir
	// npx forks node; the whole group has to go on cancellation or the
	// grandchild keeps the output pipes open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
			return err
		}
		return nil
	}
	cmd.WaitDelay = r.waitDelay

	stdoutR, stdoutW := io.Pipe()
	stderrR, stderrW := io.Pipe()
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	var (
		wg       sync.WaitGroup
		lastLine lineTracker
	)
	wg.Add(2)
	go r.stream(&wg, stdoutR, "stdout", &lastLine)
	go r.stream(&wg, stderrR, "stderr", &lastLine)

	err := cmd.Run()
	stdoutW.Close()
	stderrW.Close()
	wg.Wait()

	if err != nil {
		if tail := lastLine.get(); tail != "" {
			return fmt.Errorf("%w: %s", err, tail)
		}
		return err
	}
	return nil
}

func (r *Renderer) stream(wg *sync.WaitGroup, pipe io.Reader, name string, last *lineTracker) {
	defer wg.Done()
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		last.set(line)
		r.logger.Info("renderer output",
			logging.String(logging.FieldEventType, "render_output"),
			logging.String("stream", name),
			logging.String("line", line),
		)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("renderer output not logged",
			logging.String(logging.FieldEventType, "render_output_skipped"),
			logging.String("stream", name),
			logging.Error(err),
		)
		// Keep reading so the renderer never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, pipe)
	}
}

type lineTracker struct {
	mu   sync.Mutex
	line string
}

func (l *lineTracker) set(line string) {
	l.mu.Lock()
	l.line = line
	l.mu.Unlock()
}

func (l *lineTracker) get() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.line
}
