// Command dualctl evaluates formulas and their derivatives from the shell.
//
// Usage:
//
//	dualctl eval 'sin(x*x)' --at 5.32
//	dualctl eval 'x*y' --at 3 --set y=5 --mode lazy
//	dualctl check 'log(x*x)' --at 2 --tol 1e-8
//	dualctl sample 'x*x*x' --from -1 --to 1 --points 5
//	dualctl plot 'abs(x*x - 2.3)' --from -3 --to 3 --out abs.png
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	if err := newRootCmd(os.Stdout, log).Execute(); err != nil {
		log.WithError(err).Error("dualctl failed")
		os.Exit(1)
	}
}
