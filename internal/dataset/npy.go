package dataset

import (
	"log"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// LoadNumericalColumnNPY reads a single-column .npy file into a []float32
// numerical column. It is a thin adapter, not a general dataset loader:
// sharding, multi-column layouts and categorical/hash encoding remain a
// caller responsibility.
func LoadNumericalColumnNPY(fileName string) []float32 {
	f, err := os.Open(fileName)
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			log.Print("dataset: failed to close ", fileName, ": ", cerr)
		}
	}()

	r, err := npyio.NewReader(f)
	if err != nil {
		log.Fatal(err)
	}

	dense := &mat.Dense{}
	if err := r.Read(dense); err != nil {
		log.Fatal(err)
	}

	rows, cols := dense.Dims()
	if cols != 1 {
		log.Panicf("dataset: expected a single-column npy file, got %d columns in %q", cols, fileName)
	}

	out := make([]float32, rows)
	for i := 0; i < rows; i++ {
		out[i] = float32(dense.At(i, 0))
	}
	return out
}
