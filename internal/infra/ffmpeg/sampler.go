package ffmpeg

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	_ "image/jpeg"
	_ "image/png"

	"github.com/slidex/slidex-extraction-service/internal/domain/entity"
	"github.com/slidex/slidex-extraction-service/internal/domain/port"
	"go.uber.org/zap"
)

// stderrTail limits how much ffmpeg output is carried in a DecodeError.
const stderrTail = 2000

var showinfoPTS = regexp.MustCompile(`pts_time:([0-9]+(?:\.[0-9]+)?)`)

// SceneSampler drives an external ffmpeg binary: one pass over the video
// with the scene-change select filter dumps every candidate frame to a
// work directory, and showinfo lines on stderr carry their timestamps.
type SceneSampler struct {
	ffmpegPath  string
	ffprobePath string
	format      string
	tempDir     string
	logger      *zap.Logger
}

type SamplerConfig struct {
	FFmpegPath  string
	FFprobePath string
	Format      string
	TempDir     string
}

func NewSceneSampler(cfg SamplerConfig, logger *zap.Logger) *SceneSampler {
	return &SceneSampler{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		format:      cfg.Format,
		tempDir:     cfg.TempDir,
		logger:      logger,
	}
}

// Open runs the decode pass. It blocks for the duration of the ffmpeg run,
// reporting per-candidate progress, and returns a stream over the captured
// candidates. Cancelling ctx kills the ffmpeg process.
//
// The select filter always admits frame 0, so the opening slide is never
// lost; the closing frame is grabbed separately when scene detection did
// not already capture the tail of the video.
func (s *SceneSampler) Open(ctx context.Context, sourcePath string, sensitivity float64, onProgress func(float64)) (port.CandidateStream, error) {
	if sensitivity < 0 || sensitivity > 1 {
		return nil, fmt.Errorf("scene sensitivity %.3f outside [0,1]", sensitivity)
	}
	if _, err := os.Stat(sourcePath); err != nil {
		return nil, &entity.DecodeError{Path: sourcePath, Err: err}
	}

	duration, err := s.probeDuration(ctx, sourcePath)
	if err != nil {
		s.logger.Warn("could not probe video duration", zap.Error(err))
	}

	workDir, err := os.MkdirTemp(s.tempDir, "slidex_")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	timestamps, err := s.runSceneDetection(ctx, sourcePath, workDir, sensitivity, duration, onProgress)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, err
	}

	pattern := filepath.Join(workDir, fmt.Sprintf("*.%s", s.format))
	files, err := filepath.Glob(pattern)
	if err != nil {
		os.RemoveAll(workDir)
		return nil, fmt.Errorf("glob candidates: %w", err)
	}
	sort.Strings(files) // %06d naming makes lexicographic order numeric
	if len(files) == 0 {
		os.RemoveAll(workDir)
		return nil, &entity.DecodeError{Path: sourcePath, Err: fmt.Errorf("no decodable frames; try lowering the scene sensitivity")}
	}

	// ffmpeg occasionally flushes a frame without a matching showinfo line
	// (or the reverse) when killed mid-run; trust the shorter of the two.
	if len(timestamps) < len(files) {
		files = files[:len(timestamps)]
	} else if len(files) < len(timestamps) {
		timestamps = timestamps[:len(files)]
	}

	files, timestamps = s.appendClosingFrame(ctx, sourcePath, workDir, duration, files, timestamps)

	s.logger.Info("scene detection finished",
		zap.String("video", sourcePath),
		zap.Float64("sensitivity", sensitivity),
		zap.Float64("duration_secs", duration),
		zap.Int("candidates", len(files)),
	)

	return &candidateStream{
		files:      files,
		timestamps: timestamps,
		workDir:    workDir,
		logger:     s.logger,
	}, nil
}

func (s *SceneSampler) runSceneDetection(
	ctx context.Context,
	sourcePath, workDir string,
	sensitivity, duration float64,
	onProgress func(float64),
) ([]float64, error) {
	framePattern := filepath.Join(workDir, fmt.Sprintf("cand_%%06d.%s", s.format))
	vf := fmt.Sprintf(`select=eq(n\,0)+gt(scene\,%.4f),showinfo`, sensitivity)

	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-i", sourcePath,
		"-vf", vf,
		"-vsync", "vfr",
		"-q:v", "2",
		"-y",
		framePattern,
	)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &entity.DecodeError{Path: sourcePath, Err: err}
	}

	var timestamps []float64
	var tail []byte
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		tail = append(tail, line...)
		tail = append(tail, '\n')
		if len(tail) > stderrTail {
			tail = tail[len(tail)-stderrTail:]
		}

		m := showinfoPTS.FindSubmatch(line)
		if m == nil {
			continue
		}
		ts, err := strconv.ParseFloat(string(m[1]), 64)
		if err != nil {
			continue
		}
		timestamps = append(timestamps, ts)
		if onProgress != nil && duration > 0 {
			onProgress(ts / duration)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &entity.DecodeError{
			Path: sourcePath,
			Err:  fmt.Errorf("ffmpeg: %w, output: %s", err, tail),
		}
	}
	if onProgress != nil {
		onProgress(1)
	}
	return timestamps, nil
}

// appendClosingFrame grabs the final frame of the video when the last
// detected candidate ends well before the end, so the closing slide
// survives. Failure here is non-fatal; scene detection output stands.
func (s *SceneSampler) appendClosingFrame(
	ctx context.Context,
	sourcePath, workDir string,
	duration float64,
	files []string,
	timestamps []float64,
) ([]string, []float64) {
	if duration <= 0 || len(timestamps) == 0 {
		return files, timestamps
	}
	lastTS := timestamps[len(timestamps)-1]
	if duration-lastTS < 1.0 {
		return files, timestamps
	}

	finalPath := filepath.Join(workDir, fmt.Sprintf("final.%s", s.format))
	cmd := exec.CommandContext(ctx, s.ffmpegPath,
		"-sseof", "-1",
		"-i", sourcePath,
		"-frames:v", "1",
		"-q:v", "2",
		"-y",
		finalPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		s.logger.Warn("closing frame grab failed",
			zap.Error(err),
			zap.ByteString("output", out[max(0, len(out)-stderrTail):]),
		)
		return files, timestamps
	}
	if _, err := os.Stat(finalPath); err != nil {
		return files, timestamps
	}
	return append(files, finalPath), append(timestamps, duration)
}

// candidateStream walks the captured frame files in timestamp order,
// decoding lazily. Unreadable frames are skipped with a warning, matching
// the tolerance of the dedup pass to occasional ffmpeg flush artifacts.
type candidateStream struct {
	files      []string
	timestamps []float64
	pos        int
	workDir    string
	closed     bool
	logger     *zap.Logger
}

func (cs *candidateStream) Next(ctx context.Context) (port.Candidate, error) {
	for {
		if err := ctx.Err(); err != nil {
			return port.Candidate{}, err
		}
		if cs.pos >= len(cs.files) {
			return port.Candidate{}, io.EOF
		}

		path := cs.files[cs.pos]
		ts := cs.timestamps[cs.pos]
		cs.pos++

		img, err := decodeImageFile(path)
		if err != nil {
			cs.logger.Warn("skipping unreadable frame", zap.String("path", path), zap.Error(err))
			continue
		}
		return port.Candidate{Timestamp: ts, Image: img}, nil
	}
}

func (cs *candidateStream) Close() error {
	if cs.closed {
		return nil
	}
	cs.closed = true
	return os.RemoveAll(cs.workDir)
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
