// Command ssd runs an SSD object detector over an image and renders the
// detections into <log-dir>/ssd.jpg. When --image is a directory every image
// in it is predicted as one batch.
package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nvr-ai/go-infer/benchmark"
	"github.com/nvr-ai/go-infer/config"
	_ "github.com/nvr-ai/go-infer/dnn"
	"github.com/nvr-ai/go-infer/images"
	"github.com/nvr-ai/go-infer/inference"
	_ "github.com/nvr-ai/go-infer/inference/providers"
	"github.com/nvr-ai/go-infer/models"
	"github.com/nvr-ai/go-infer/models/postprocess"
	"github.com/nvr-ai/go-infer/render"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// OutputFile is the rendered image written to the log directory.
const OutputFile = "ssd.jpg"

type flags struct {
	config     string
	modelDir   string
	modelName  string
	image      string
	logDir     string
	iterations int
	warmup     int
	engine     string
	threshold  float64
	width      int
	height     int
}

func main() {
	if err := newRootCmd(&flags{}).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ssd",
		Short:         "Detect objects in an image with a single shot detector",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := resolveConfig(cmd, *f)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: c.Level()})))
			return run(cmd.Context(), cmd.OutOrStdout(), c, f.image, f.warmup)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.config, "config", "", "YAML configuration file")
	fs.StringVarP(&f.modelDir, "model-dir", "p", "", "directory holding the model and synset.txt")
	fs.StringVarP(&f.modelName, "model-name", "n", "", "model artifact name")
	fs.StringVarP(&f.image, "image", "i", "", "image file, or directory of images, to run detection on")
	fs.StringVarP(&f.logDir, "log-dir", "l", "", "directory to write "+OutputFile+" into")
	fs.IntVarP(&f.iterations, "iterations", "c", 1, "number of predictions to run")
	fs.IntVar(&f.warmup, "warmup", 0, "untimed predictions before the measured iterations")
	fs.StringVar(&f.engine, "engine", "", "engine: onnx or opencv")
	fs.Float64Var(&f.threshold, "threshold", 0, "minimum detection probability")
	fs.IntVar(&f.width, "width", 0, "model input width")
	fs.IntVar(&f.height, "height", 0, "model input height")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

// resolveConfig loads the configuration file and applies the flags that were
// set on the command line.
func resolveConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	c, err := config.Load(f.config)
	if err != nil {
		return c, err
	}

	changed := cmd.Flags().Changed
	if changed("model-dir") {
		c.Model.ModelDir = f.modelDir
	}
	if changed("model-name") {
		c.Model.ModelName = f.modelName
	}
	if changed("log-dir") {
		c.LogDir = f.logDir
	}
	if changed("iterations") {
		c.Iterations = f.iterations
	}
	if changed("engine") {
		t, err := inference.ParseEngineType(f.engine)
		if err != nil {
			return c, err
		}
		c.Model.Engine.Type = t
	}
	if changed("threshold") {
		c.Translator.Threshold = f.threshold
	}
	if changed("width") {
		c.Translator.Width = f.width
	}
	if changed("height") {
		c.Translator.Height = f.height
	}
	return c, c.Validate()
}

func run(ctx context.Context, out io.Writer, c config.Config, imagePath string, warmup int) error {
	info, err := os.Stat(imagePath)
	if err != nil {
		return errors.Wrap(err, "image")
	}

	translator, err := models.NewTranslator(c.Translator)
	if err != nil {
		return err
	}
	model, err := inference.LoadModel(ctx, c.Model)
	if err != nil {
		return err
	}
	predictor := inference.NewPredictor(model, translator,
		inference.WithWorkers(c.Workers),
		inference.WithModelOwnership(),
	)
	defer predictor.Close()

	if info.IsDir() {
		err = detectDir(ctx, out, predictor, c, imagePath)
	} else {
		err = detect(ctx, out, predictor, c, imagePath, warmup)
	}
	if err != nil {
		return err
	}
	printLatency(out, predictor.Metrics().Summaries())
	return nil
}

type detector = inference.Predictor[image.Image, postprocess.DetectedObjects]

// detect predicts one image c.Iterations times, renders the last result and
// saves a benchmark report next to it.
func detect(ctx context.Context, out io.Writer, predictor *detector, c config.Config, path string, warmup int) error {
	img, err := images.Load(path)
	if err != nil {
		return err
	}

	var objects postprocess.DetectedObjects
	scenario := benchmark.Scenario{Name: c.Model.ModelName, Iterations: c.Iterations, WarmupRuns: warmup, FailFast: true}
	report, err := benchmark.Run(ctx, predictor, []image.Image{img}, scenario, func(i int, result postprocess.DetectedObjects) {
		objects = result
		slog.Info("progress", "iteration", i+1, "of", c.Iterations)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Throughput: %.2f images/s\n", report.FramesPerSecond)
	printDetections(out, objects)

	if c.LogDir == "" {
		return nil
	}
	if _, err := benchmark.Save(c.LogDir, report); err != nil {
		return err
	}
	saved, err := render.SaveImage(c.LogDir, OutputFile, img, objects)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Detections saved to %s\n", saved)
	return nil
}

// detectDir predicts every image in dir as one batch and renders each result
// under its own file name.
func detectDir(ctx context.Context, out io.Writer, predictor *detector, c config.Config, dir string) error {
	files, err := images.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.Errorf("no images in %s", dir)
	}

	decoded := make([]image.Image, len(files))
	for i := range files {
		if decoded[i], err = files[i].Decode(); err != nil {
			return errors.Wrap(err, files[i].Path)
		}
	}

	results, err := predictor.BatchPredict(ctx, decoded)
	if err != nil {
		return err
	}
	for i, objects := range results {
		fmt.Fprintf(out, "%s: ", filepath.Base(files[i].Path))
		printDetections(out, objects)
		if c.LogDir == "" {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(files[i].Path), filepath.Ext(files[i].Path)) + "_" + OutputFile
		if _, err := render.SaveImage(c.LogDir, name, decoded[i], objects); err != nil {
			return err
		}
	}
	return nil
}

func printDetections(out io.Writer, objects postprocess.DetectedObjects) {
	if len(objects) == 0 {
		fmt.Fprintln(out, "No objects detected")
		return
	}
	fmt.Fprintf(out, "%d objects detected:\n", len(objects))
	for _, obj := range objects {
		fmt.Fprintf(out, "  %s\n", obj)
	}
}

func printLatency(out io.Writer, summaries []inference.Summary) {
	if len(summaries) == 0 {
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Stage", "Count", "Mean", "Min", "P50", "P90", "P99", "Max"})
	for _, s := range summaries {
		table.Append([]string{
			s.Stage,
			fmt.Sprint(s.Count),
			ms(s.Mean), ms(s.Min), ms(s.P50), ms(s.P90), ms(s.P99), ms(s.Max),
		})
	}
	table.Render()
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
}
