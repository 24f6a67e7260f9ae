package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// Request is one engine invocation.
type Request struct {
	SignalPath string
	MaskPath   string
	BinWidth   float64

	// Features maps engine class to the internal feature names to enable.
	Features map[string][]string
}

// Engine computes radiomic features for a signal/mask pair.
//
// The result is keyed by "<class>_<Name>", matching feature.Spec.ResultKey.
// Entries for features that were not requested are ignored.
type Engine interface {
	Execute(ctx context.Context, req Request) (map[string]float64, error)
}

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, req Request) (map[string]float64, error)

// Execute calls f.
func (f EngineFunc) Execute(ctx context.Context, req Request) (map[string]float64, error) {
	return f(ctx, req)
}

// DefaultCommand is the pyradiomics command line entry point.
const DefaultCommand = "pyradiomics"

// CommandEngine runs an external pyradiomics-compatible program:
//
//	<command> [args...] <image> <mask> --param <params.yaml> --format json
//
// and reads its JSON result from stdout.
type CommandEngine struct {
	Command string
	Args    []string
	Timeout time.Duration
	Logger  *slog.Logger
}

// params is the pyradiomics parameter file layout.
type params struct {
	Setting      map[string]any      `yaml:"setting"`
	ImageType    map[string]struct{} `yaml:"imageType"`
	FeatureClass map[string][]string `yaml:"featureClass"`
}

// Execute implements Engine.
func (e *CommandEngine) Execute(ctx context.Context, req Request) (map[string]float64, error) {
	if len(req.Features) == 0 {
		return nil, errors.New("no features requested")
	}
	if req.BinWidth <= 0 || math.IsNaN(req.BinWidth) || math.IsInf(req.BinWidth, 0) {
		return nil, fmt.Errorf("invalid bin width %v", req.BinWidth)
	}

	paramPath := filepath.Join(filepath.Dir(req.SignalPath), strings.TrimSuffix(filepath.Base(req.SignalPath), ".nrrd")+".params.yaml")
	if err := writeParams(paramPath, req); err != nil {
		return nil, err
	}
	defer os.Remove(paramPath)

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	command := e.Command
	if command == "" {
		command = DefaultCommand
	}
	args := append(append([]string(nil), e.Args...),
		req.SignalPath, req.MaskPath, "--param", paramPath, "--format", "json")

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("running engine", "command", command, "args", args)

	var stderr strings.Builder
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("run %s: %w: %s", command, err, msg)
		}
		return nil, fmt.Errorf("run %s: %w", command, err)
	}
	return ParseResult(out)
}

func writeParams(path string, req Request) error {
	p := params{
		Setting:      map[string]any{"binWidth": req.BinWidth},
		ImageType:    map[string]struct{}{"Original": {}},
		FeatureClass: req.Features,
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal engine params: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write engine params: %w", err)
	}
	return nil
}

// ParseResult reads pyradiomics JSON output. Keys are of the form
// "<imageType>_<class>_<Name>"; the image type prefix is dropped. The
// "diagnostics_*" entries and non-numeric values are skipped. A top-level
// array is read as one result object per case and only the first is used.
func ParseResult(data []byte) (map[string]float64, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("engine output is not valid JSON")
	}
	res := gjson.ParseBytes(data)
	if res.IsArray() {
		items := res.Array()
		if len(items) == 0 {
			return nil, errors.New("engine output is an empty array")
		}
		res = items[0]
	}
	if !res.IsObject() {
		return nil, errors.New("engine output is not a JSON object")
	}

	out := make(map[string]float64)
	res.ForEach(func(k, v gjson.Result) bool {
		prefix, tail, ok := strings.Cut(k.String(), "_")
		if !ok || prefix == "diagnostics" {
			return true
		}
		switch v.Type {
		case gjson.Number:
			out[tail] = v.Float()
		case gjson.String:
			if f, err := strconv.ParseFloat(v.Str, 64); err == nil {
				out[tail] = f
			}
		}
		return true
	})
	return out, nil
}
