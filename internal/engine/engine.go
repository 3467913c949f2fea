package engine

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/emersion/go-vcard"
	"github.com/google/uuid"
	"github.com/tartampluch/go-fiscalcode/internal/config"
)

// BatchConfig selects the vCard source of a batch run.
type BatchConfig struct {
	Mode      string // config.SourceModeLocal or config.SourceModeWeb
	LocalPath string // Absolute path to the .vcf file
	WebURL    string // CardDAV or WebDAV URL
	WebUser   string // HTTP Basic Auth Username
	WebPass   string // HTTP Basic Auth Password
}

// Generator computes fiscal codes for every contact of an address book.
type Generator struct {
	Clock    Clock
	Fetcher  Fetcher
	Composer *Composer
}

// RunBatch reads the configured vCard stream and composes one entry per
// card. Cards that cannot be encoded are kept with Err set; only source and
// context failures abort the run.
func (g *Generator) RunBatch(ctx context.Context, cfg BatchConfig, table MunicipalityTable) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{ID: uuid.NewString()}
	log := slog.With(
		config.LogKeyComponent, config.CompBatch,
		config.LogKeyMode, cfg.Mode,
		config.LogKeyBatchID, result.ID,
	)
	log.InfoContext(ctx, config.MsgBatchStarted)

	reader, err := g.acquireStream(ctx, cfg)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s: %w", config.ErrVCardParse, err)
	}
	defer func() { _ = reader.Close() }()

	composer := g.Composer
	if composer == nil {
		composer = defaultComposer
	}
	clock := g.Clock
	if clock == nil {
		clock = RealClock{}
	}
	now := clock.Now()

	decoder := vcard.NewDecoder(reader)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		card, err := decoder.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Warn(config.MsgSkippedCard, config.LogKeyError, err)
			continue
		}

		entry := buildEntry(card, composer, table, now)
		if entry.Err != nil {
			result.Failed++
			log.Debug(config.MsgComposeFailed,
				config.LogKeyName, entry.Name,
				config.LogKeyError, entry.Err)
		}
		result.Entries = append(result.Entries, entry)
	}

	log.Info(config.MsgBatchDone,
		config.LogKeyCount, len(result.Entries),
		config.LogKeyFailed, result.Failed,
		config.LogKeyDuration, time.Since(start).Milliseconds())
	return result, nil
}

// acquireStream opens the appropriate data source based on configuration.
func (g *Generator) acquireStream(ctx context.Context, cfg BatchConfig) (io.ReadCloser, error) {
	switch cfg.Mode {
	case config.SourceModeLocal:
		if cfg.LocalPath == "" {
			return nil, errors.New(config.ErrLocalPathEmpty)
		}
		return os.Open(cfg.LocalPath)
	case config.SourceModeWeb:
		if cfg.WebURL == "" {
			return nil, errors.New(config.ErrWebURLEmpty)
		}
		if g.Fetcher == nil {
			return nil, errors.New(config.ErrFetcherMissing)
		}
		return g.Fetcher.Fetch(ctx, cfg.WebURL, cfg.WebUser, cfg.WebPass)
	default:
		return nil, fmt.Errorf("%s: %q", config.ErrModeUnsupport, cfg.Mode)
	}
}

// buildEntry maps a card to a PersonInput, validates it and composes the code.
func buildEntry(card vcard.Card, composer *Composer, table MunicipalityTable, now time.Time) FiscalCodeEntry {
	in, err := personFromCard(card)
	entry := FiscalCodeEntry{Name: cardName(card, in), Input: in}

	input := fmt.Sprintf(config.FormatHashInput, entry.Name, in.BirthDate.Format(config.DateFormatInput), config.UIDSalt)
	hash := sha256.Sum256([]byte(input))
	entry.UID = fmt.Sprintf("%x", hash[:config.UIDHashLength])

	if err != nil {
		entry.Err = err
		return entry
	}
	if errs := ValidatePerson(in, table, now); len(errs) > 0 {
		entry.Err = errs
		return entry
	}
	entry.FiscalCode, entry.Err = composer.Compose(in, table)
	return entry
}

// personFromCard reads N, GENDER, BDAY and the birth place of a card.
// Missing fields are left empty for ValidatePerson to report.
func personFromCard(card vcard.Card) (PersonInput, error) {
	var in PersonInput
	if n := card.Name(); n != nil {
		in.Surname = n.FamilyName
		in.GivenName = n.GivenName
	}

	if sex, _ := card.Gender(); sex != "" {
		parsed, err := ParseSex(string(sex))
		if err != nil {
			return in, err
		}
		in.Sex = parsed
	}

	if bday := card.Get(config.VCardBDAY); bday != nil && bday.Value != "" {
		date, err := parseDate(bday.Value)
		if err != nil {
			return in, err
		}
		in.BirthDate = date
	}

	in.BirthCity = card.PreferredValue(config.VCardBirthPlace)
	if in.BirthCity == "" {
		in.BirthCity = card.PreferredValue(config.VCardXBirthPlace)
	}
	return in, nil
}

// cardName picks FN, then "Given Family", then a fallback.
func cardName(card vcard.Card, in PersonInput) string {
	if fn := card.PreferredValue(config.VCardFN); fn != "" {
		return fn
	}
	if name := strings.TrimSpace(fmt.Sprintf(config.FormatBatchName, in.GivenName, in.Surname)); name != "" {
		return name
	}
	return config.FallbackName
}

// parseDate handles the vCard date formats that carry a year. Truncated
// --MM-DD birthdays cannot produce a fiscal code.
func parseDate(value string) (time.Time, error) {
	formats := []string{
		config.DateFormatInput,
		config.DateFormatVCardBasic,
		config.DateFormatVCardRFC3339,
	}
	for _, f := range formats {
		if t, err := time.Parse(f, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: %q", config.ErrDateParse, value)
}
