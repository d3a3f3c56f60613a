// otpaudit batch-generates one-time passwords and exports a per-character
// frequency audit to an .xlsx workbook with a z-score chart. It exists to
// check that the entropy-to-printable mapping behaves as designed on real
// hardware: the distribution is not flat, because the range fold doubles
// the weight of '!'..'A' and '^'.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Thiagojm/otp_go_cli/bbusb"
	"github.com/Thiagojm/otp_go_cli/naming"
	"github.com/Thiagojm/otp_go_cli/otp"
	"github.com/Thiagojm/otp_go_cli/pseudorng"
	"github.com/Thiagojm/otp_go_cli/truerng"
)

const sheetName = "Distribution"

// charSpan is the number of distinct password characters, '!' through '~'.
const charSpan = otp.PrintableMax - otp.PrintableMin + 1

// CharRow is one audited character with its observed and expected counts.
type CharRow struct {
	Char     byte
	Count    int
	Expected float64
	ZScore   float64
}

// charWeight returns the probability of a single mapped entropy byte
// producing c. Masked values 0..32 fold up onto 33..65 and 127 folds down
// onto 94, so those characters carry weight 2/128; the rest carry 1/128.
func charWeight(c byte) float64 {
	if c < otp.PrintableMin || c > otp.PrintableMax {
		return 0
	}
	if c <= otp.PrintableMin+32 || c == '^' {
		return 2.0 / 128.0
	}
	return 1.0 / 128.0
}

// tally counts character occurrences across passwords, indexed by
// char - otp.PrintableMin.
func tally(passwords []string) ([charSpan]int, error) {
	var counts [charSpan]int
	for _, pw := range passwords {
		for i := 0; i < len(pw); i++ {
			c := pw[i]
			if c < otp.PrintableMin || c > otp.PrintableMax {
				return counts, fmt.Errorf("password %q contains out-of-range byte %d", pw, c)
			}
			counts[c-otp.PrintableMin]++
		}
	}
	return counts, nil
}

// buildRows computes expected counts and z-scores for each character given
// the total number of mapped bytes drawn.
func buildRows(counts [charSpan]int, totalChars int) []CharRow {
	rows := make([]CharRow, 0, charSpan)
	n := float64(totalChars)
	for i := 0; i < charSpan; i++ {
		c := byte(i) + otp.PrintableMin
		w := charWeight(c)
		expected := n * w
		std := math.Sqrt(n * w * (1 - w))
		z := 0.0
		if std > 0 {
			z = (float64(counts[i]) - expected) / std
		}
		rows = append(rows, CharRow{Char: c, Count: counts[i], Expected: expected, ZScore: z})
	}
	return rows
}

// writeToExcel writes the audit rows to an .xlsx with a line chart of the
// per-character z-score.
func writeToExcel(rows []CharRow, path string, passwords int) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(0)
	if defaultSheet != sheetName {
		f.NewSheet(sheetName)
		f.DeleteSheet(defaultSheet)
	}

	_ = f.SetCellStr(sheetName, "A1", "char")
	_ = f.SetCellStr(sheetName, "B1", "code")
	_ = f.SetCellStr(sheetName, "C1", "count")
	_ = f.SetCellStr(sheetName, "D1", "expected")
	_ = f.SetCellStr(sheetName, "E1", "z_score")

	for i, r := range rows {
		rowIdx := i + 2
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowIdx), string(r.Char))
		_ = f.SetCellInt(sheetName, fmt.Sprintf("B%d", rowIdx), int(r.Char))
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", rowIdx), r.Count)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("D%d", rowIdx), r.Expected, 6, 64)
		_ = f.SetCellFloat(sheetName, fmt.Sprintf("E%d", rowIdx), r.ZScore, 6, 64)
	}

	endRow := len(rows) + 1
	chart := &excelize.Chart{
		Type: excelize.Line,
		Series: []excelize.ChartSeries{
			{
				Name:       fmt.Sprintf("%s!$E$1", sheetName),
				Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetName, endRow),
				Values:     fmt.Sprintf("%s!$E$2:$E$%d", sheetName, endRow),
			},
		},
		Title:  []excelize.RichTextRun{{Text: fmt.Sprintf("Character z-scores over %d passwords", passwords)}},
		Legend: excelize.ChartLegend{Position: "none"},
		XAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Password character"}}},
		YAxis:  excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Z-score vs mapped-byte weights"}}, MajorGridLines: true},
	}
	if err := f.AddChart(sheetName, "G2", chart); err != nil {
		return err
	}

	return f.SaveAs(path)
}

func main() {
	countFlag := flag.Int("count", 10000, "number of passwords to generate (required > 0)")
	deviceFlag := flag.String("device", "pseudo", "entropy device: pseudo|trng|bitb")
	outDir := flag.String("outdir", "data", "output directory for the .xlsx report")
	flag.Parse()

	if *countFlag <= 0 {
		log.Fatal("-count must be > 0")
	}

	var dev naming.Device
	switch *deviceFlag {
	case string(naming.DevicePseudo):
		dev = naming.DevicePseudo
	case string(naming.DeviceTrueRNG):
		dev = naming.DeviceTrueRNG
	case string(naming.DeviceBitBabbler):
		dev = naming.DeviceBitBabbler
	default:
		log.Fatalf("invalid -device: %s (allowed: pseudo, trng, bitb)", *deviceFlag)
	}

	var open otp.OpenFunc
	switch dev {
	case naming.DevicePseudo:
		open = pseudorng.Opener()
	case naming.DeviceTrueRNG:
		present, err := truerng.Detect()
		if err != nil {
			log.Fatalf("trng detect: %v", err)
		}
		if !present {
			log.Fatal("TrueRNG device not found")
		}
		open = truerng.Opener()
	case naming.DeviceBitBabbler:
		ok, _, err := bbusb.Detect()
		if err != nil {
			log.Fatalf("bitb detect: %v", err)
		}
		if !ok {
			log.Fatal("No BitBabbler devices found (VID 0x0403 PID 0x7840)")
		}
		sess, err := bbusb.Open(0, 0)
		if err != nil {
			log.Fatalf("bitb open: %v", err)
		}
		defer sess.Close()
		open = sess.Opener()
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatalf("creating outdir: %v", err)
	}
	outPath, err := naming.BuildAuditPath(*outDir, time.Now(), dev, *countFlag)
	if err != nil {
		log.Fatalf("build output name: %v", err)
	}

	log.Printf("generating %d passwords from %s", *countFlag, string(dev))
	passwords := make([]string, 0, *countFlag)
	for i := 0; i < *countFlag; i++ {
		pw, err := otp.Generate(open)
		if err != nil {
			log.Fatalf("generate password %d: %v", i+1, err)
		}
		passwords = append(passwords, pw)
	}

	counts, err := tally(passwords)
	if err != nil {
		log.Fatalf("tally: %v", err)
	}
	rows := buildRows(counts, *countFlag*otp.Length)

	if err := writeToExcel(rows, outPath, *countFlag); err != nil {
		log.Fatalf("write report: %v", err)
	}
	log.Printf("wrote %s", outPath)
}
