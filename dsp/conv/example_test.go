package conv_test

import (
	"fmt"

	"github.com/cwbudde/algo-spectro/dsp/conv"
)

func ExampleSmooth() {
	out, err := conv.Smooth([]float64{0, 0, 4, 0, 0}, []float64{0.25, 0.5, 0.25})
	if err != nil {
		panic(err)
	}

	fmt.Println(out)
	// Output: [0 1 2 1 0]
}
