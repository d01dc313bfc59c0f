package loader

import (
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/xuri/excelize/v2"
)

const (
	DistancesSheet     = "distances"
	PackagesSheet      = "packages"
	AddressesSheet     = "addresses"
	BestSolutionsSheet = "best_solutions"
)

// ReadWorkbook loads a dataset from the distances, packages and (optional)
// addresses sheets of an XLSX file.
func ReadWorkbook(path string) (*domain.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func ReadWorkbookFrom(r io.Reader) (*domain.Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	return readWorkbook(f)
}

func readWorkbook(f *excelize.File) (*domain.Dataset, error) {
	sheets := f.GetSheetList()
	for _, name := range []string{DistancesSheet, PackagesSheet} {
		if !slices.Contains(sheets, name) {
			return nil, fmt.Errorf("sheet not found: %s", name)
		}
	}

	ds := &domain.Dataset{}

	rows, err := f.GetRows(DistancesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", DistancesSheet, err)
	}
	if ds.Distances, err = ParseDistances(rows); err != nil {
		return nil, err
	}

	rows, err = f.GetRows(PackagesSheet)
	if err != nil {
		return nil, fmt.Errorf("read %s rows: %w", PackagesSheet, err)
	}
	if ds.Packages, err = ParsePackages(rows); err != nil {
		return nil, err
	}

	if slices.Contains(sheets, AddressesSheet) {
		rows, err = f.GetRows(AddressesSheet)
		if err != nil {
			return nil, fmt.Errorf("read %s rows: %w", AddressesSheet, err)
		}
		if ds.Locations, err = ParseAddresses(rows); err != nil {
			return nil, err
		}
	}

	if err := CheckDataset(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// WriteWorkbook writes ds in the layout ReadWorkbook expects.
func WriteWorkbook(w io.Writer, ds *domain.Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", DistancesSheet); err != nil {
		return err
	}
	for i, row := range ds.Distances {
		if err := setRow(f, DistancesSheet, i+1, anySlice(row)); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(PackagesSheet); err != nil {
		return err
	}
	if err := setRow(f, PackagesSheet, 1, []any{"id", "address", "city", "zip", "due", "weight", "note", "available", "truck_restriction"}); err != nil {
		return err
	}
	for i, p := range ds.Packages {
		due := domain.FormatClock(p.TimeDue)
		if p.TimeDue == domain.EndOfDay {
			due = "EOD"
		}
		row := []any{p.ID, p.Address, p.City, p.Zip, due, p.Weight, p.Note, domain.FormatClock(p.TimeAvailable), FormatRestriction(p.TruckRestriction)}
		if err := setRow(f, PackagesSheet, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(AddressesSheet); err != nil {
		return err
	}
	if err := setRow(f, AddressesSheet, 1, []any{"index", "name", "street"}); err != nil {
		return err
	}
	for i, l := range ds.Locations {
		if err := setRow(f, AddressesSheet, i+2, []any{l.Index, l.Name, l.Street}); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

// WriteBestSolutionsXLSX writes the best-solution log as a single sheet with
// the same columns as WriteBestSolutionsCSV.
func WriteBestSolutionsXLSX(w io.Writer, log []domain.BestSolutionRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", BestSolutionsSheet); err != nil {
		return err
	}
	header := make([]any, len(bestSolutionHeader))
	for i, h := range bestSolutionHeader {
		header[i] = h
	}
	if err := setRow(f, BestSolutionsSheet, 1, header); err != nil {
		return err
	}
	for i, rec := range log {
		row := []any{i, rec.Generation, rec.Mileage, rec.LatePackages, rec.ActiveVehicles, rec.Cost}
		if err := setRow(f, BestSolutionsSheet, i+2, row); err != nil {
			return err
		}
	}

	_, err := f.WriteTo(w)
	return err
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func anySlice(row []float64) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return out
}
