// mock-feed writes sample fire and EMS CSV exports for local development.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

var fireUnits = []string{"ENG201", "ENG202", "ENG205", "QNT1", "LAD4", "TRK7", "BAT1", "MED12"}
var emsUnits = []string{"MED12", "MED14", "AMB3", "AMB7", "EMS SUP1"}
var runTypes = []string{"STRUCTURE FIRE", "VEHICLE FIRE", "MEDICAL", "MVA", "ALARM"}

func main() {
	var (
		outDir    = flag.String("out", "data/incoming", "output directory")
		incidents = flag.Int("incidents", 25, "incidents per feed")
		day       = flag.String("day", time.Now().UTC().Format("2006-01-02"), "service day (YYYY-MM-DD)")
		seed      = flag.Int64("seed", 0, "random seed, 0 for time-based")
	)
	flag.Parse()

	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	base, err := time.Parse("2006-01-02", *day)
	if err != nil {
		log.Fatalf("invalid day: %v", err)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	firePath := filepath.Join(*outDir, fmt.Sprintf("fire_%s.csv", *day))
	if err := writeFeed(firePath, fireHeader, fireRow, base, *incidents, "F", fireUnits, rng); err != nil {
		log.Fatalf("write fire feed: %v", err)
	}
	emsPath := filepath.Join(*outDir, fmt.Sprintf("ems_%s.csv", *day))
	if err := writeFeed(emsPath, emsHeader, emsRow, base, *incidents, "E", emsUnits, rng); err != nil {
		log.Fatalf("write ems feed: %v", err)
	}
	log.Printf("wrote %s and %s (seed %d)", firePath, emsPath, *seed)
}

var fireHeader = []string{"inci_id", "unit", "dispatch", "enroute", "staged", "arrived", "available", "inci_type", "address"}
var emsHeader = []string{"Incident_Number", "Unit", "Unit_Assigned", "Unit_Enroute", "Unit_Staged", "Unit_Arrived", "Unit_Cleared", "Run_Type", "Scene_Address"}

type rowFunc func(incident, unit string, dispatch time.Time, rng *rand.Rand) []string

func writeFeed(path string, header []string, row rowFunc, base time.Time, incidents int, prefix string, units []string, rng *rand.Rand) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; i < incidents; i++ {
		incident := fmt.Sprintf("%s%s%04d", prefix, base.Format("20060102"), i+1)
		dispatch := base.Add(time.Duration(rng.Intn(24*3600)) * time.Second)
		assigned := 1 + rng.Intn(3)
		for _, unit := range pick(units, assigned, rng) {
			if err := w.Write(row(incident, unit, dispatch, rng)); err != nil {
				return err
			}
			dispatch = dispatch.Add(time.Duration(15+rng.Intn(90)) * time.Second)
		}
	}
	w.Flush()
	return w.Error()
}

func fireRow(incident, unit string, dispatch time.Time, rng *rand.Rand) []string {
	times := unitTimes(dispatch, rng)
	return append([]string{incident, unit}, append(times,
		runTypes[rng.Intn(len(runTypes))],
		fmt.Sprintf("%d Main St", 100+rng.Intn(900)))...)
}

func emsRow(incident, unit string, dispatch time.Time, rng *rand.Rand) []string {
	times := unitTimes(dispatch, rng)
	return append([]string{incident, unit}, append(times,
		runTypes[rng.Intn(len(runTypes))],
		fmt.Sprintf("%d Oak Ave", 100+rng.Intn(900)))...)
}

// unitTimes renders dispatch/enroute/staged/arrived/cleared with the gaps and
// absences a real CAD export shows: some units never arrive, staging is rare,
// and the odd timestamp is plain garbage.
func unitTimes(dispatch time.Time, rng *rand.Rand) []string {
	const layout = "2006-01-02 15:04:05"

	enroute := dispatch.Add(time.Duration(30+rng.Intn(120)) * time.Second)
	arrived := enroute.Add(time.Duration(120+rng.Intn(480)) * time.Second)
	cleared := arrived.Add(time.Duration(600+rng.Intn(3600)) * time.Second)

	staged := "NULL"
	if rng.Intn(10) == 0 {
		staged = enroute.Add(time.Duration(30+rng.Intn(60)) * time.Second).Format(layout)
	}

	arrivedStr := arrived.Format(layout)
	clearedStr := cleared.Format(layout)
	switch rng.Intn(12) {
	case 0:
		// Cancelled en route.
		arrivedStr = "NULL"
		clearedStr = enroute.Add(time.Duration(60+rng.Intn(120)) * time.Second).Format(layout)
	case 1:
		arrivedStr = "pending"
	}

	return []string{
		dispatch.Format(layout),
		enroute.Format(layout),
		staged,
		arrivedStr,
		clearedStr,
	}
}

func pick(units []string, n int, rng *rand.Rand) []string {
	shuffled := append([]string(nil), units...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if n > len(shuffled) {
		n = len(shuffled)
	}
	return shuffled[:n]
}
