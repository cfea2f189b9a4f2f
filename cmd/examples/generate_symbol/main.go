package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	gans "github.com/LdDl/gans-go"
	"github.com/LdDl/gans-go/summary"
	"gorgonia.org/tensor"
)

var (
	configFile    = flag.String("config", "", "JSON file overriding default hyperparameters")
	checkpointDir = flag.String("checkpoints", "./checkpoints/symbols", "Folder for checkpoints")
	logDir        = flag.String("logs", "./logs", "Folder for summary databases")
	numEpoches    = flag.Int("epochs", 30, "Number of epochs")
	saveStep      = flag.Int("save_step", 200, "Save checkpoint every N steps")
	evalPrint     = flag.Int("sample_step", 100, "Print translated symbols every N steps")
	resume        = flag.Bool("resume", false, "Continue from the latest checkpoint")
	numSamples    = flag.Int("samples", 512, "Number of examples per domain")
	noise         = flag.Float64("noise", 0.1, "Probability of pixel flip in training examples")
	symbolHeight  = 10
	symbolWidth   = 8
)

// 'H' char in binary representation
var hSymbol = []float64{
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 1, 1, 1, 1, 1, 1, 0,
	0, 1, 1, 1, 1, 1, 1, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 1, 1, 0, 0, 1, 1, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

// 'T' char in binary representation
var tSymbol = []float64{
	0, 0, 0, 0, 0, 0, 0, 0,
	0, 1, 1, 1, 1, 1, 1, 0,
	0, 1, 1, 1, 1, 1, 1, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 1, 1, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0,
}

// genSyntheticData Returns numSamples noisy copies of symbol
func genSyntheticData(symbol []float64, numSamples int, flip float64) (*gans.TrainSet, error) {
	flips := gans.UniformRandDense(numSamples, len(symbol), 0, 1).Data().([]float64)
	f64data := make([]float64, 0, numSamples*len(symbol))
	for i := 0; i < numSamples; i++ {
		for j, v := range symbol {
			if flips[i*len(symbol)+j] < flip {
				v = 1 - v
			}
			f64data = append(f64data, v)
		}
	}
	data := tensor.New(tensor.WithShape(numSamples, len(symbol)), tensor.WithBacking(f64data))
	return gans.NewTrainSet(data, nil)
}

func printSymbols(title string, t *tensor.Dense) {
	data := t.Data().([]float64)
	size := symbolHeight * symbolWidth
	fmt.Println(title)
	for x := 0; x < symbolHeight; x++ {
		fmt.Printf("\t")
		for n := 0; n < 3 && (n+1)*size <= len(data); n++ {
			for y := 0; y < symbolWidth; y++ {
				r := math.Round(data[n*size+x*symbolWidth+y])
				if r == -0 {
					r = 0
				}
				fmt.Printf("%.0f ", r)
			}
			fmt.Printf("\t")
		}
		fmt.Println()
	}
}

func main() {
	flag.Parse()
	// Initialize seed with constant value to reproduce results
	rand.Seed(1337)

	cfg := gans.DefaultDiscoGANConfig()
	cfg.Name = "symbols_discogan"
	cfg.BatchSize = 16
	cfg.Generator.OutputActivation = "sigmoid"
	// Pixels are intensities in [0, 1]
	cfg.ReconLoss = "bce"
	if *configFile != "" {
		if err := gans.LoadConfig(*configFile, &cfg); err != nil {
			log.Fatalln(err)
		}
	}

	// X domain is 'H', Y domain is 'T'
	dataX, err := genSyntheticData(hSymbol, *numSamples, *noise)
	if err != nil {
		log.Fatalln(err)
	}
	dataY, err := genSyntheticData(tSymbol, *numSamples, *noise)
	if err != nil {
		log.Fatalln(err)
	}
	printSymbols("Reference data:", tensor.New(tensor.WithShape(2, symbolHeight*symbolWidth), tensor.WithBacking(append(append([]float64{}, hSymbol...), tSymbol...))))

	model, err := gans.NewDiscoGAN(cfg, dataX, dataY, nil, nil)
	if err != nil {
		log.Fatalln(err)
	}

	writer, err := summary.NewSQLite(summary.RunPath(*logDir, cfg.Name, time.Now()))
	if err != nil {
		log.Fatalln(err)
	}
	defer writer.Close()

	sample := func(m gans.Model, step int) error {
		disco := m.(*gans.DiscoGAN)
		xToY, err := disco.SampleYDefault()
		if err != nil {
			return err
		}
		yToX, err := disco.SampleXDefault()
		if err != nil {
			return err
		}
		fmt.Printf("\nStep %d\n", step)
		printSymbols("X -> Y -> X:", firstOfEach(xToY))
		printSymbols("Y -> X -> Y:", firstOfEach(yToX))
		return nil
	}

	state, err := gans.Train(model, gans.TrainOptions{
		NumEpochs:     *numEpoches,
		Resume:        *resume,
		ResumeStep:    -1,
		CheckpointDir: *checkpointDir,
		SaveStep:      *saveStep,
		SampleStep:    gans.EveryN(*evalPrint),
		SampleFn:      sample,
		Summary:       writer,
		Progress:      gans.NewBarProgress(os.Stdout),
	})
	if err != nil {
		log.Fatalln(err)
	}
	// Final test of generators
	fmt.Println("Start testing generators after final epoch")
	if err = sample(model, state.Step); err != nil {
		log.Fatalln(err)
	}
}

// firstOfEach Stacks the first example of input, translated and reconstructed batches
func firstOfEach(batches []*tensor.Dense) *tensor.Dense {
	size := symbolHeight * symbolWidth
	data := make([]float64, 0, len(batches)*size)
	for _, b := range batches {
		data = append(data, b.Data().([]float64)[:size]...)
	}
	return tensor.New(tensor.WithShape(len(batches), size), tensor.WithBacking(data))
}
