package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"jordanella.com/slash-go/internal/cv"
	"jordanella.com/slash-go/internal/monitor"
	"jordanella.com/slash-go/pkg/templates"
)

var (
	visionRegion    string
	visionCapture   bool
	classifyModel   string
	detectTemplates string
	detectThreshold float64
	detectWait      time.Duration
	detectAll       bool
	detectDebugOut  string
)

// loadFrame returns the image named by args[0], or a fresh capture from the
// configured backend with --capture. The region flag crops either.
func loadFrame(ctx context.Context, a *app, args []string) (*image.RGBA, error) {
	rect, err := optionalRect(visionRegion)
	if err != nil {
		return nil, err
	}

	if visionCapture {
		dev, err := a.connect(ctx)
		if err != nil {
			return nil, err
		}
		return a.frameSource(dev).CaptureRegion(ctx, rect)
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("pass an image file or --capture")
	}
	img, err := cv.LoadImage(args[0])
	if err != nil {
		return nil, err
	}
	if rect.Empty() {
		return img, nil
	}
	clipped := rect.Intersect(img.Bounds())
	if clipped.Empty() {
		return nil, fmt.Errorf("region %v lies outside the %dx%d image", rect, img.Bounds().Dx(), img.Bounds().Dy())
	}
	return cv.CropRegion(img, clipped), nil
}

var classifyCmd = &cobra.Command{
	Use:   "classify [image]",
	Short: "Run a classifier model on an image or a live capture",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		img, err := loadFrame(ctx, a, args)
		if err != nil {
			return err
		}

		set := a.models()
		adapter, ok := set.ByName(classifyModel)
		if !ok {
			return fmt.Errorf("unknown model %q (stamina, enemy, item)", classifyModel)
		}
		c := a.staminaClassifier(set)
		if classifyModel != "stamina" {
			c = adapter
		}

		res, err := c.Classify(ctx, img)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s", headerStyle.Render(classifyModel+":"), nameStyle.Render(res.Label))
		if classifyModel == "stamina" {
			if state, ok := monitor.StateForLabel(res.Label); ok {
				fmt.Fprintf(cmd.OutOrStdout(), " -> %s", state)
			}
		}
		fmt.Fprintln(cmd.OutOrStdout())
		printScores(cmd.OutOrStdout(), adapter.Spec().Labels, res.Scores)
		return nil
	},
}

func printScores(w io.Writer, labels []string, scores []float32) {
	for i, s := range scores {
		label := fmt.Sprintf("#%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		fmt.Fprintf(w, "  %-16s %s\n", label, dateStyle.Render(fmt.Sprintf("%.4f", s)))
	}
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [image]",
	Short: "Run the colour-ratio heuristic on an image or a live capture",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		img, err := loadFrame(context.Background(), a, args)
		if err != nil {
			return err
		}

		ratios := cv.MeasureColorRatios(img)
		class := ratios.Classify()
		mean := cv.RegionAverage(img, img.Bounds())
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", headerStyle.Render("colour:"), nameStyle.Render(class.String()))
		fmt.Fprintf(cmd.OutOrStdout(), "  red %.3f  green %.3f  blue %.3f\n", ratios.Red, ratios.Green, ratios.Blue)
		fmt.Fprintf(cmd.OutOrStdout(), "  mean #%02x%02x%02x\n", mean.R, mean.G, mean.B)
		return nil
	},
}

var detectCmd = &cobra.Command{
	Use:   "detect <template> [image]",
	Short: "Look for a registered template with the correlation detector",
	Long: `Detect scores a template against an image file or a live capture. With
--wait it polls the configured backend until the template appears, using the
template's own match method and region. --all lists every placement above the
threshold and --debug-out writes the frame with the best match outlined.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		registry := templates.NewRegistry(detectTemplates)
		if err := registry.LoadFromDirectory(detectTemplates); err != nil {
			return err
		}
		name := args[0]
		tpl, ok := registry.Get(name)
		if !ok {
			return fmt.Errorf("template %q not found in %s", name, detectTemplates)
		}
		needle, err := registry.Image(name)
		if err != nil {
			return err
		}

		threshold := tpl.Threshold
		if detectThreshold > 0 {
			threshold = detectThreshold
		}

		if detectWait > 0 {
			return waitForTemplate(cmd.OutOrStdout(), a, registry, name)
		}

		img, err := loadFrame(context.Background(), a, args[1:])
		if err != nil {
			return err
		}

		score, at, fits := cv.BestCorrelation(img, needle)
		best := &cv.MatchResult{Found: fits && score >= threshold, Location: at, Confidence: score}
		printMatch(cmd.OutOrStdout(), name, best, threshold)

		if detectAll {
			all := cv.FindTemplateAll(img, needle, &cv.MatchConfig{Method: cv.MatchMethodCorrelation, Threshold: threshold})
			for _, m := range all {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d,%d  %s\n", m.Location.X, m.Location.Y, dateStyle.Render(fmt.Sprintf("%.3f", m.Confidence)))
			}
		}

		if detectDebugOut != "" {
			if err := cv.SavePNG(cv.DebugMatch(img, best, needle.Bounds().Size()), detectDebugOut); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", detectDebugOut)
		}
		return nil
	},
}

// waitForTemplate polls a live capture until name appears or --wait elapses
func waitForTemplate(w io.Writer, a *app, registry *templates.Registry, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, detectWait)
	defer cancel()

	dev, err := a.connect(ctx)
	if err != nil {
		return err
	}
	svc := a.frameSource(dev).WithTemplates(registry)

	res, err := svc.WaitForTemplate(ctx, name, 250*time.Millisecond)
	if err != nil {
		fmt.Fprintf(w, "%s %s after %s\n", nameStyle.Render(name), errorStyle.Render("not found"), detectWait)
		return err
	}
	tpl, _ := registry.Get(name)
	printMatch(w, name, res, tpl.Threshold)
	return nil
}

func printMatch(w io.Writer, name string, res *cv.MatchResult, threshold float64) {
	verdict := errorStyle.Render("not found")
	if res.Found {
		verdict = successStyle.Render("found")
	}
	fmt.Fprintf(w, "%s %s score %.3f (threshold %.3f)", nameStyle.Render(name), verdict, res.Confidence, threshold)
	if res.Found {
		fmt.Fprintf(w, " at %d,%d", res.Location.X, res.Location.Y)
	}
	fmt.Fprintln(w)
}

func init() {
	for _, c := range []*cobra.Command{classifyCmd, analyzeCmd, detectCmd} {
		c.Flags().StringVar(&visionRegion, "region", "", "Crop to x,y,width,height before analysis")
		c.Flags().BoolVar(&visionCapture, "capture", false, "Capture a frame from the configured backend instead of reading a file")
		rootCmd.AddCommand(c)
	}
	classifyCmd.Flags().StringVar(&classifyModel, "model", "stamina", "Model to run: stamina, enemy or item")
	detectCmd.Flags().StringVar(&detectTemplates, "templates", "templates", "Directory of template YAML files")
	detectCmd.Flags().Float64Var(&detectThreshold, "threshold", 0, "Override the template's threshold")
	detectCmd.Flags().DurationVar(&detectWait, "wait", 0, "Poll the configured backend until the template appears, up to this long")
	detectCmd.Flags().BoolVar(&detectAll, "all", false, "List every placement above the threshold")
	detectCmd.Flags().StringVar(&detectDebugOut, "debug-out", "", "Write the frame with the best match outlined to this PNG")
}
