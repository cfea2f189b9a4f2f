package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	gans "github.com/LdDl/gans-go"
	"github.com/LdDl/gans-go/summary"
	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

var (
	configFile    = flag.String("config", "", "JSON file overriding default hyperparameters")
	outputFolder  = flag.String("output", "./output", "Folder for charts")
	checkpointDir = flag.String("checkpoints", "./checkpoints/blobs", "Folder for checkpoints")
	logDir        = flag.String("logs", "./logs", "Folder for summary databases")
	numEpoches    = flag.Int("epochs", 100, "Number of epochs")
	saveStep      = flag.Int("save_step", 1000, "Save checkpoint every N steps")
	resume        = flag.Bool("resume", false, "Continue from the latest checkpoint")
	numExamples   = flag.Int("samples", 3000, "Number of training examples")
	spread        = flag.Float64("spread", 0.3, "Standard deviation of every blob")
	sampleSteps   = []int{100, 500, 1000, 5000}
)

// Blob centers by class name
var centers = map[string][2]float64{
	"left":  {-2, 0},
	"right": {2, 0},
	"top":   {0, 3},
}

// genBlobs Returns labeled points scattered around centers
func genBlobs(numExamples int, stddev float64) (*gans.TrainSet, []string, error) {
	names := make([]string, 0, len(centers))
	for name := range centers {
		names = append(names, name)
	}
	sort.Strings(names)
	noise := distuv.Normal{Mu: 0, Sigma: stddev}
	raw := make([]string, numExamples)
	f64data := make([]float64, 0, numExamples*2)
	for i := range raw {
		raw[i] = names[rand.Intn(len(names))]
		center := centers[raw[i]]
		f64data = append(f64data, center[0]+noise.Rand(), center[1]+noise.Rand())
	}
	labels, classes := gans.LabelEncode(raw)
	data := tensor.New(tensor.WithShape(numExamples, 2), tensor.WithBacking(f64data))
	ts, err := gans.NewTrainSet(data, labels)
	if err != nil {
		return nil, nil, err
	}
	return ts, classes, nil
}

func main() {
	flag.Parse()
	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	trainSet, classes, err := genBlobs(*numExamples, *spread)
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("Classes: %v\n", classes)

	cfg := gans.DefaultWACGANConfig()
	cfg.Name = "blobs_wacgan"
	cfg.BatchSize = 64
	cfg.NumClasses = len(classes)
	cfg.Scheduler = gans.CriticScheduler{DIters: 5, DHighIters: 100, DInitialHighRounds: 25, DStepHighRounds: 500}
	if *configFile != "" {
		if err := gans.LoadConfig(*configFile, &cfg); err != nil {
			log.Fatalln(err)
		}
	}

	if err = os.MkdirAll(*outputFolder, 0755); err != nil {
		log.Fatalln(err)
	}
	if err = gans.PlotSamples(trainSet.TrainData, filepath.Join(*outputFolder, "blobs_reference.png")); err != nil {
		log.Fatalln(err)
	}

	model, err := gans.NewWACGAN(cfg, trainSet, nil, nil)
	if err != nil {
		log.Fatalln(err)
	}

	writer, err := summary.NewSQLite(summary.RunPath(*logDir, cfg.Name, time.Now()))
	if err != nil {
		log.Fatalln(err)
	}
	defer writer.Close()

	state, err := gans.Train(model, gans.TrainOptions{
		NumEpochs:     *numEpoches,
		Resume:        *resume,
		ResumeStep:    -1,
		CheckpointDir: *checkpointDir,
		SaveStep:      *saveStep,
		SampleStep:    gans.NewAtSteps(sampleSteps...),
		SampleFn: func(m gans.Model, step int) error {
			return plotClasses(m.(*gans.WACGAN), classes, cfg.ZDim, fmt.Sprintf("blobs_%d", step))
		},
		Summary:  writer,
		Progress: gans.NewBarProgress(os.Stdout),
	})
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("Training has been finished at step %d\n", state.Step)
	if err = plotClasses(model, classes, cfg.ZDim, "blobs_final"); err != nil {
		log.Fatalln(err)
	}
}

// plotClasses Plots generated samples of every class into its own chart
func plotClasses(model *gans.WACGAN, classes []string, zDim int, prefix string) error {
	const perClass = 200
	z := gans.NormRandDense(perClass, zDim, 0, 1)
	for c, name := range classes {
		labels := make([]int, perClass)
		for i := range labels {
			labels[i] = c
		}
		samples, err := model.Sample(z, labels)
		if err != nil {
			return err
		}
		if err = gans.PlotSamples(samples, filepath.Join(*outputFolder, fmt.Sprintf("%s_%s.png", prefix, name))); err != nil {
			return err
		}
	}
	return nil
}
