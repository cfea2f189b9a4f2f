package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	gans "github.com/LdDl/gans-go"
	"github.com/LdDl/gans-go/summary"
	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

func generateX() float64 {
	return 2 * math.Pi * rand.Float64()
}

func generateY(x float64) float64 {
	return math.Sin(x)
}

var (
	configFile      = flag.String("config", "", "JSON file overriding default hyperparameters")
	outputFolder    = flag.String("output", "./output", "Folder for charts")
	checkpointDir   = flag.String("checkpoints", "./checkpoints/sin", "Folder for checkpoints")
	logDir          = flag.String("logs", "./logs", "Folder for summary databases")
	numEpoches      = flag.Int("epochs", 400, "Number of epochs")
	saveStep        = flag.Int("save_step", 1000, "Save checkpoint every N steps")
	evalPrint       = flag.Int("sample_step", 500, "Plot generated samples every N steps")
	resume          = flag.Bool("resume", false, "Continue from the latest checkpoint")
	trainDataLength = flag.Int("samples", 1024, "Number of training examples")
	numTestSamples  = 300
)

func main() {
	flag.Parse()
	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	cfg := gans.DefaultGANConfig()
	cfg.Name = "sin_gan"
	cfg.BatchSize = 16
	cfg.ZDim = 2
	if *configFile != "" {
		if err := gans.LoadConfig(*configFile, &cfg); err != nil {
			log.Fatalln(err)
		}
	}

	// Prepare synthetic data
	trainSet, err := gans.GenerateTrainingSet(*trainDataLength, generateX, generateY)
	if err != nil {
		log.Fatalln(err)
	}
	if err = os.MkdirAll(*outputFolder, 0755); err != nil {
		log.Fatalln(err)
	}
	// Plot reference function
	err = gans.PlotSamples(trainSet.TrainData, filepath.Join(*outputFolder, "reference_function.png"))
	if err != nil {
		log.Fatalln(err)
	}

	model, err := gans.NewGAN(cfg, trainSet, sinGenerator{latentSpaceSize: cfg.ZDim}, nil)
	if err != nil {
		log.Fatalln(err)
	}

	writer, err := summary.NewSQLite(summary.RunPath(*logDir, cfg.Name, time.Now()))
	if err != nil {
		log.Fatalln(err)
	}
	defer writer.Close()

	st := time.Now()
	state, err := gans.Train(model, gans.TrainOptions{
		NumEpochs:     *numEpoches,
		Resume:        *resume,
		ResumeStep:    -1,
		CheckpointDir: *checkpointDir,
		SaveStep:      *saveStep,
		SampleStep:    gans.EveryN(*evalPrint),
		SampleFn: func(m gans.Model, step int) error {
			return plotGenerated(m.(*gans.GAN), fmt.Sprintf("gen_reference_func_%d.png", step))
		},
		Summary:  writer,
		Progress: gans.NewBarProgress(os.Stdout),
	})
	if err != nil {
		log.Fatalln(err)
	}
	fmt.Printf("Training has been finished at step %d. Taken time: %v\n", state.Step, time.Since(st))

	// Final test of Generator
	fmt.Println("Start testing generator after final epoch")
	if err = plotGenerated(model, "gen_reference_func_final.png"); err != nil {
		log.Fatalln(err)
	}
}

func plotGenerated(model *gans.GAN, fname string) error {
	samples, err := model.SampleN(numTestSamples)
	if err != nil {
		return err
	}
	return gans.PlotSamples(samples, filepath.Join(*outputFolder, fname))
}

// sinGenerator Hand-made generator: latent -> 16 -> 32 -> 16 -> (x, y)
type sinGenerator struct {
	latentSpaceSize int
}

func (sg sinGenerator) BuildGenerator(g *gorgonia.ExprGraph, name string, inputSize, outputSize int) (*gans.GeneratorNet, error) {
	if inputSize != sg.latentSpaceSize {
		return nil, fmt.Errorf("Generator expects %d inputs, but got %d", sg.latentSpaceSize, inputSize)
	}
	gen_shp3 := tensor.Shape{outputSize, 16}
	gen_b3 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(1, gen_shp3[0]), gorgonia.WithName(name+"_b3"), gorgonia.WithInit(gorgonia.Zeroes()))
	gen_w3 := gorgonia.NewMatrix(g, gorgonia.Float64, gorgonia.WithShape(gen_shp3...), gorgonia.WithName(name+"_w3"), gorgonia.WithInit(gorgonia.GlorotN(1.0)))

	generator := gans.Generator(name,
		gans.NewLinearLayer(g, name+"_fc1", inputSize, 16, gans.Rectify),
		gans.NewLinearLayer(g, name+"_fc2", 16, 32, gans.Rectify),
		gans.NewLinearLayer(g, name+"_fc3", 32, 16, gans.Rectify),
		&gans.Layer{
			WeightNode: gen_w3,
			BiasNode:   gen_b3,
			Type:       gans.LayerLinear,
			Activation: gans.NoActivation,
		},
	)
	return generator, nil
}
