package editing

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/vidrelay/vidrelay-backend/pkg/config"
	"github.com/vidrelay/vidrelay-backend/pkg/enums"
	pkgerrors "github.com/vidrelay/vidrelay-backend/pkg/errors"
	"github.com/vidrelay/vidrelay-backend/pkg/logger"
)

// EditRequest describes one transform applied to a local media file.
type EditRequest struct {
	SourcePath string
	Action     enums.EditAction
	Params     EditParams
}

// EditParams carries the per-action knobs. Only the fields relevant to the
// chosen action are read.
type EditParams struct {
	TrimStart    time.Duration
	TrimEnd      time.Duration
	Text         string
	SubtitlePath string
}

// Editor applies a transform and returns the path of the derived file. The
// source file is never modified.
type Editor interface {
	Apply(ctx context.Context, req EditRequest) (string, error)
}

type ffmpegEditor struct {
	cfg  config.EditingConfig
	logg *logger.Logger
	run  func(ctx context.Context, bin string, args []string) error
}

// NewFFmpegEditor wires the external ffmpeg binary as the edit backend.
func NewFFmpegEditor(cfg config.EditingConfig, logg *logger.Logger) (Editor, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &ffmpegEditor{
		cfg:  cfg,
		logg: logg,
		run:  runFFmpeg,
	}, nil
}

func runFFmpeg(ctx context.Context, bin string, args []string) error {
	cmd := exec.CommandContext(ctx, bin, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, lastLines(string(out), 5))
	}
	return nil
}

func (e *ffmpegEditor) Apply(ctx context.Context, req EditRequest) (string, error) {
	if req.SourcePath == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "source path is required")
	}
	if !req.Action.IsValid() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid edit action")
	}

	outPath := DerivedPath(req.SourcePath, req.Action)
	args, err := buildArgs(req, outPath)
	if err != nil {
		return "", err
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	ctx = e.logg.WithField(ctx, "edit_action", string(req.Action))
	e.logg.Info(ctx, "applying edit")

	if err := e.run(ctx, e.cfg.FFmpegPath, args); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "edit failed")
	}
	return outPath, nil
}

// DerivedPath names the output of an edit after its source and action, so
// repeated edits are as deterministic as downloads.
func DerivedPath(sourcePath string, action enums.EditAction) string {
	dir := filepath.Dir(sourcePath)
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	return filepath.Join(dir, fmt.Sprintf("%s_%s.mp4", base, action))
}

// buildArgs maps one action to an ffmpeg invocation. All outputs re-encode to
// mp4 so downstream transports see a single container format.
func buildArgs(req EditRequest, outPath string) ([]string, error) {
	base := []string{"-y", "-i", req.SourcePath}

	switch req.Action {
	case enums.EditActionTrim:
		if req.Params.TrimEnd <= req.Params.TrimStart {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "trim end must be after trim start")
		}
		return append(base,
			"-ss", formatSeconds(req.Params.TrimStart),
			"-to", formatSeconds(req.Params.TrimEnd),
			"-c", "copy",
			outPath,
		), nil

	case enums.EditActionCaption:
		if strings.TrimSpace(req.Params.Text) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "caption text is required")
		}
		filter := fmt.Sprintf(
			"drawtext=text='%s':x=(w-text_w)/2:y=h-(2*text_h):fontsize=36:fontcolor=white:box=1:boxcolor=black@0.5",
			escapeFilterText(req.Params.Text),
		)
		return append(base, "-vf", filter, "-c:a", "copy", outPath), nil

	case enums.EditActionBlurFace:
		// Box blur on the upper-center region where faces typically sit.
		filter := "split[main][crop];[crop]crop=w=iw/2:h=ih/3:x=iw/4:y=0,boxblur=10[blurred];[main][blurred]overlay=x=W/4:y=0"
		return append(base, "-filter_complex", filter, "-c:a", "copy", outPath), nil

	case enums.EditActionBlurSensitive:
		filter := "split[main][crop];[crop]crop=w=iw/3:h=ih/3:x=iw/3:y=ih/3,boxblur=10[blurred];[main][blurred]overlay=x=W/3:y=H/3"
		return append(base, "-filter_complex", filter, "-c:a", "copy", outPath), nil

	case enums.EditActionSubtitle:
		if req.Params.SubtitlePath == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtitle file is required")
		}
		filter := fmt.Sprintf("subtitles=%s", req.Params.SubtitlePath)
		return append(base, "-vf", filter, "-c:a", "copy", outPath), nil

	case enums.EditActionEnhance:
		return append(base, "-vf", "eq=contrast=1.1:brightness=0.05:saturation=1.2", "-c:a", "copy", outPath), nil

	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid edit action")
	}
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}

func escapeFilterText(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return replacer.Replace(text)
}

func lastLines(out string, n int) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
