// Package index serializes resolved entries into the tab-separated files
// that make up an index release. Every writer orders its rows itself, so
// identical input always yields byte-identical files.
package index

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/coolbeans/kgindex/pkg/kg"
)

// Entry is one row of an entity or property index.
type Entry struct {
	SurfaceForm string
	ID          string
	Popularity  int64
	Description string
	TypeSummary string
}

// Columns selects the optional columns of an index file.
type Columns struct {
	Descriptions bool
	Types        bool
}

// Inverse is one row of an inverse-property index.
type Inverse struct {
	PropertyID string
	InverseID  string
	Popularity int64
}

var fieldCleaner = strings.NewReplacer("\t", " ", "\r", " ", "\n", " ")

func clean(field string) string {
	return fieldCleaner.Replace(field)
}

// SortEntries orders entries by popularity descending, then surface form.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Popularity != entries[j].Popularity {
			return entries[i].Popularity > entries[j].Popularity
		}
		if entries[i].SurfaceForm != entries[j].SurfaceForm {
			return entries[i].SurfaceForm < entries[j].SurfaceForm
		}
		return entries[i].ID < entries[j].ID
	})
}

// WriteIndex writes entries as `surface \t id [\t description] [\t types]`.
// The entries slice is sorted in place.
func WriteIndex(writer io.Writer, entries []Entry, columns Columns) error {
	SortEntries(entries)

	buffered := bufio.NewWriter(writer)
	for _, entry := range entries {
		fields := []string{clean(entry.SurfaceForm), clean(entry.ID)}
		if columns.Descriptions {
			fields = append(fields, clean(entry.Description))
		}
		if columns.Types {
			fields = append(fields, clean(entry.TypeSummary))
		}
		if _, err := buffered.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// WriteInverses writes `property \t inverse` rows ordered by property
// popularity descending, then property id.
func WriteInverses(writer io.Writer, inverses []Inverse) error {
	sort.SliceStable(inverses, func(i, j int) bool {
		if inverses[i].Popularity != inverses[j].Popularity {
			return inverses[i].Popularity > inverses[j].Popularity
		}
		return inverses[i].PropertyID < inverses[j].PropertyID
	})

	buffered := bufio.NewWriter(writer)
	for _, inverse := range inverses {
		if _, err := fmt.Fprintf(buffered, "%s\t%s\n", clean(inverse.PropertyID), clean(inverse.InverseID)); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// WritePrefixes writes `short \t long` rows.
func WritePrefixes(writer io.Writer, prefixes []kg.Prefix) error {
	buffered := bufio.NewWriter(writer)
	for _, prefix := range prefixes {
		if _, err := fmt.Fprintf(buffered, "%s\t%s\n", prefix.Short, prefix.Long); err != nil {
			return err
		}
	}
	return buffered.Flush()
}

// WriteRedirects writes `canonical \t source...` rows sorted by canonical
// id, sources sorted within a row.
func WriteRedirects(writer io.Writer, redirects map[string][]string) error {
	canonicals := make([]string, 0, len(redirects))
	for canonical := range redirects {
		canonicals = append(canonicals, canonical)
	}
	sort.Strings(canonicals)

	buffered := bufio.NewWriter(writer)
	for _, canonical := range canonicals {
		sources := append([]string(nil), redirects[canonical]...)
		sort.Strings(sources)
		fields := append([]string{canonical}, sources...)
		for index := range fields {
			fields[index] = clean(fields[index])
		}
		if _, err := buffered.WriteString(strings.Join(fields, "\t") + "\n"); err != nil {
			return err
		}
	}
	return buffered.Flush()
}
