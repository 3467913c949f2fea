package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tartampluch/go-fiscalcode/internal/config"
	"golang.org/x/sync/errgroup"
)

// CityRecord is one element of the municipality reference list.
type CityRecord struct {
	Name          string `json:"nome"`
	Province      string `json:"provincia"`
	CadastralCode string `json:"codiceCatastale"`
	PostalCode    string `json:"cap"`
}

// ProvinceRecord is one element of the province reference list.
type ProvinceRecord struct {
	Code         string `json:"codice"`
	Name         string `json:"nome"`
	Region       string `json:"regione"`
	Abbreviation string `json:"sigla"`
}

// ReferenceLoader downloads both reference lists and joins them into a
// MunicipalityTable.
type ReferenceLoader struct {
	Fetcher      Fetcher
	CitiesURL    string
	ProvincesURL string
}

// NewReferenceLoader returns a loader for the given endpoints, defaulting
// empty URLs to the public comuni-ita API.
func NewReferenceLoader(f Fetcher, citiesURL, provincesURL string) *ReferenceLoader {
	if citiesURL == "" {
		citiesURL = config.DefaultCitiesURL
	}
	if provincesURL == "" {
		provincesURL = config.DefaultProvincesURL
	}
	return &ReferenceLoader{Fetcher: f, CitiesURL: citiesURL, ProvincesURL: provincesURL}
}

// Load fetches both lists concurrently and builds the table.
func (l *ReferenceLoader) Load(ctx context.Context) (MunicipalityTable, error) {
	if l.Fetcher == nil {
		return nil, errors.New(config.ErrFetcherMissing)
	}
	start := time.Now()
	log := slog.With(config.LogKeyComponent, config.CompLoader)
	log.InfoContext(ctx, config.MsgRefLoadStart)

	var (
		cities    []CityRecord
		provinces []ProvinceRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.fetchJSON(gctx, l.CitiesURL, &cities) })
	g.Go(func() error { return l.fetchJSON(gctx, l.ProvincesURL, &provinces) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table, skipped := BuildMunicipalityTable(cities, provinces)
	if len(table) == 0 {
		return nil, errors.New(config.ErrRefEmpty)
	}

	log.InfoContext(ctx, config.MsgRefLoaded,
		config.LogKeyCount, len(table),
		config.LogKeySkipped, skipped,
		config.LogKeyDuration, time.Since(start).Milliseconds(),
	)
	return table, nil
}

func (l *ReferenceLoader) fetchJSON(ctx context.Context, url string, v any) error {
	rc, err := l.Fetcher.Fetch(ctx, url, "", "")
	if err != nil {
		return fmt.Errorf("%s: %w", config.ErrRefFetch, err)
	}
	defer func() { _ = rc.Close() }()

	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return fmt.Errorf("%s: %w", config.ErrRefDecode, err)
	}
	return nil
}

// BuildMunicipalityTable joins cities to provinces on the province code and
// labels each entry "<name> (<abbreviation>)". Cities whose province is
// unknown are left out; their number is returned as skipped.
func BuildMunicipalityTable(cities []CityRecord, provinces []ProvinceRecord) (MunicipalityTable, int) {
	abbreviations := make(map[string]string, len(provinces))
	for _, p := range provinces {
		if _, dup := abbreviations[p.Code]; !dup {
			abbreviations[p.Code] = p.Abbreviation
		}
	}

	table := make(MunicipalityTable, 0, len(cities))
	skipped := 0
	for _, c := range cities {
		abbr, ok := abbreviations[c.Province]
		if !ok || abbr == "" {
			skipped++
			slog.Debug(config.MsgRefSkipCity,
				config.LogKeyComponent, config.CompLoader,
				config.LogKeyCity, c.Name,
				config.LogKeyProvince, c.Province)
			continue
		}
		table = append(table, MunicipalityEntry{
			DisplayName: DisplayName(c.Name, abbr),
			ShortCode:   c.CadastralCode,
		})
	}
	return table, skipped
}
