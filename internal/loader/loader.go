package loader

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/parcel-routing/route-optimizer/backend/internal/domain"
	"github.com/parcel-routing/route-optimizer/backend/internal/hashchain"
)

const (
	DistancesFile = "distances.csv"
	PackagesFile  = "packages.csv"
	AddressesFile = "addresses.csv"
)

var ErrAsymmetric = errors.New("distance matrix is not symmetric")

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // half matrices have ragged rows
	cr.TrimLeadingSpace = true
	return cr.ReadAll()
}

func ReadDistancesCSV(r io.Reader) ([][]float64, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read distances: %w", err)
	}
	return ParseDistances(rows)
}

func ReadPackagesCSV(r io.Reader) ([]*domain.Package, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read packages: %w", err)
	}
	return ParsePackages(rows)
}

func ReadAddressesCSV(r io.Reader) ([]domain.Location, error) {
	rows, err := readCSV(r)
	if err != nil {
		return nil, fmt.Errorf("read addresses: %w", err)
	}
	return ParseAddresses(rows)
}

// ParseDistances builds a square matrix from a full or half table. A blank or
// missing cell [i][j] takes the value of [j][i]; the diagonal defaults to 0.
func ParseDistances(rows [][]string) ([][]float64, error) {
	n := len(rows)
	cell := func(i, j int) string {
		if j >= len(rows[i]) {
			return ""
		}
		return strings.TrimSpace(rows[i][j])
	}

	d := make([][]float64, n)
	for i := range n {
		d[i] = make([]float64, n)
		for j := range n {
			raw := cell(i, j)
			if raw == "" {
				raw = cell(j, i)
			}
			if raw == "" {
				if i == j {
					continue
				}
				return nil, fmt.Errorf("distance [%d][%d]: both halves are empty", i, j)
			}

			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("distance [%d][%d]: %w", i, j, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("distance [%d][%d]: negative value %v", i, j, v)
			}
			d[i][j] = v
		}
	}

	if err := ValidateSymmetric(d); err != nil {
		return nil, err
	}
	return d, nil
}

func ValidateSymmetric(d [][]float64) error {
	for i := range d {
		if len(d[i]) != len(d) {
			return fmt.Errorf("distance row %d has %d columns, want %d", i, len(d[i]), len(d))
		}
		for j := 0; j < i; j++ {
			if d[i][j] != d[j][i] {
				return fmt.Errorf("%w: [%d][%d]=%v, [%d][%d]=%v", ErrAsymmetric, i, j, d[i][j], j, i, d[j][i])
			}
		}
	}
	return nil
}

// TimeMatrix converts distances into travel times at speed (distance units
// per hour).
func TimeMatrix(d [][]float64, speed float64) [][]time.Duration {
	t := make([][]time.Duration, len(d))
	for i, row := range d {
		t[i] = make([]time.Duration, len(row))
		for j, v := range row {
			t[i][j] = time.Duration(v / speed * float64(time.Hour))
		}
	}
	return t
}

func isHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(row[0]))
	return err != nil
}

// ParsePackages reads rows of id, address, city, zip, due, weight, note,
// available, truck restriction. A leading header row is skipped.
func ParsePackages(rows [][]string) ([]*domain.Package, error) {
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	pkgs := make([]*domain.Package, 0, len(rows))
	seen := make(map[int]bool, len(rows))

	for n, row := range rows {
		line := n + 1
		if len(row) < 5 {
			return nil, fmt.Errorf("package row %d: want at least 5 columns, got %d", line, len(row))
		}
		col := func(i int) string {
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		id, err := strconv.Atoi(col(0))
		if err != nil {
			return nil, fmt.Errorf("package row %d: id: %w", line, err)
		}
		if seen[id] {
			return nil, fmt.Errorf("package row %d: duplicate id %d", line, id)
		}
		seen[id] = true

		address, err := strconv.Atoi(col(1))
		if err != nil {
			return nil, fmt.Errorf("package row %d: address: %w", line, err)
		}

		due, err := domain.ParseClock(col(4))
		if err != nil {
			return nil, fmt.Errorf("package row %d: due: %w", line, err)
		}

		var weight float64
		if w := col(5); w != "" {
			if weight, err = strconv.ParseFloat(w, 64); err != nil {
				return nil, fmt.Errorf("package row %d: weight: %w", line, err)
			}
		}

		available := domain.DefaultAvailable
		if a := col(7); a != "" {
			if available, err = domain.ParseClock(a); err != nil {
				return nil, fmt.Errorf("package row %d: available: %w", line, err)
			}
		}

		restriction, err := ParseRestriction(col(8))
		if err != nil {
			return nil, fmt.Errorf("package row %d: truck restriction: %w", line, err)
		}

		pkgs = append(pkgs, &domain.Package{
			ID:               id,
			Address:          address,
			City:             col(2),
			Zip:              col(3),
			TimeDue:          due,
			Weight:           weight,
			Note:             col(6),
			TimeAvailable:    available,
			TruckRestriction: restriction,
		})
	}

	return pkgs, nil
}

// ParseRestriction reads a list of vehicle ids separated by "|", ";" or ",".
// "" and "0" mean unrestricted.
func ParseRestriction(s string) ([]int, error) {
	if s == "" || s == "0" {
		return nil, nil
	}

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '|' || r == ';' || r == ','
	})
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return nil, err
		}
		if id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func FormatRestriction(ids []int) string {
	if len(ids) == 0 {
		return "0"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}

// ParseAddresses reads rows of index, name, street.
func ParseAddresses(rows [][]string) ([]domain.Location, error) {
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	locs := make([]domain.Location, 0, len(rows))
	for n, row := range rows {
		if len(row) < 3 {
			return nil, fmt.Errorf("address row %d: want 3 columns, got %d", n+1, len(row))
		}
		idx, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("address row %d: index: %w", n+1, err)
		}
		locs = append(locs, domain.Location{
			Index:  idx,
			Name:   strings.TrimSpace(row[1]),
			Street: strings.TrimSpace(row[2]),
		})
	}
	return locs, nil
}

// ReadDir loads distances.csv, packages.csv and addresses.csv from dir.
// addresses.csv is optional.
func ReadDir(dir string) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	f, err := os.Open(filepath.Join(dir, DistancesFile))
	if err != nil {
		return nil, err
	}
	ds.Distances, err = ReadDistancesCSV(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	f, err = os.Open(filepath.Join(dir, PackagesFile))
	if err != nil {
		return nil, err
	}
	ds.Packages, err = ReadPackagesCSV(f)
	f.Close()
	if err != nil {
		return nil, err
	}

	f, err = os.Open(filepath.Join(dir, AddressesFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		ds.Locations, err = ReadAddressesCSV(f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}

	if err := CheckDataset(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// CheckDataset verifies that every package address and location index fits
// the distance matrix.
func CheckDataset(ds *domain.Dataset) error {
	n := len(ds.Distances)
	if n == 0 {
		return errors.New("dataset has no locations")
	}
	if err := ValidateSymmetric(ds.Distances); err != nil {
		return err
	}
	for _, p := range ds.Packages {
		if p.Address < 0 || p.Address >= n {
			return fmt.Errorf("package %d: address %d outside the %d-location matrix", p.ID, p.Address, n)
		}
	}
	for _, l := range ds.Locations {
		if l.Index < 0 || l.Index >= n {
			return fmt.Errorf("location %d outside the %d-location matrix", l.Index, n)
		}
	}
	return nil
}

// NewStore inserts pkgs into a fresh package store.
func NewStore(pkgs []*domain.Package) *hashchain.HashChain[*domain.Package] {
	store := hashchain.New[*domain.Package]()
	for _, p := range pkgs {
		store.Insert(p.ID, p)
	}
	return store
}
