/*plot_loss plots the calibration trajectory recorded in a run's loss table:
the guidance loss per stage and the mean of each material field.

Usage:
    $ go run plot_loss.go path/to/loss.txt out_prefix
*/
package main

import (
	"fmt"
	"log"
	"os"

	plt "github.com/phil-mansfield/pyplot"
	"github.com/phil-mansfield/table"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatalf("Required file use: $ %s loss_file out_prefix", os.Args[0])
	}
	lossFile, outPrefix := os.Args[1], os.Args[2]

	cols, err := table.ReadTable(lossFile, []int{0, 1, 2, 3, 4, 5}, nil)
	if err != nil {
		log.Fatal(err.Error())
	}
	stages, losses := cols[0], cols[1]
	means := cols[2:6]

	plt.Reset()

	plt.Figure()
	plt.Plot(stages, losses, "k", plt.LW(2))
	plt.Title("Guidance loss per stage")
	plt.XLabel("Stage", plt.FontSize(16))
	plt.YLabel("Loss", plt.FontSize(16))
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(fmt.Sprintf("%s_loss.png", outPrefix))

	names := []string{"E", "Shear modulus", "Bulk modulus", "Viscosity"}
	colors := []string{"r", "g", "b", "m"}
	for i := range means {
		plt.Figure()
		plt.Plot(stages, means[i], colors[i], plt.LW(2))
		plt.Title(fmt.Sprintf("Mean %s per stage", names[i]))
		plt.XLabel("Stage", plt.FontSize(16))
		plt.YLabel(names[i], plt.FontSize(16))
		plt.YScale("log")
		plt.Grid(plt.Axis("y"))
		plt.SaveFig(fmt.Sprintf("%s_field%d.png", outPrefix, i))
	}

	plt.Execute()
}
