package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/termex/pkg/termex/internalerr"
)

// Extraction controls every filtering decision of a term extraction run.
type Extraction struct {
	MinCount           int
	NPMIThreshold      decimal.Decimal
	RelevanceThreshold decimal.Decimal
	Stopwords          []string
	ExcludedTerms      []string

	// Weights of the relevance score components.
	Weights Weights
	// Dictionary tunes the dictionary gap detector.
	Dictionary Dictionary
	// Workers bounds the number of documents analyzed concurrently.
	// 0 uses GOMAXPROCS.
	Workers int
}

// Weights combine NPMI and the normalized IDF and average TF-IDF into a
// relevance score.
type Weights struct {
	NPMI  decimal.Decimal
	IDF   decimal.Decimal
	TFIDF decimal.Decimal
}

// Dictionary configures the bar a bigram must clear to be proposed as a
// missing dictionary entry: the Quantile of strong-bigram NPMI values,
// capped at NPMICap and never below the NPMI threshold.
type Dictionary struct {
	Quantile float64
	NPMICap  decimal.Decimal
	// MinCount is an extra count floor for proposals; 0 uses MinCount.
	MinCount int
}

// Default returns the default extraction configuration.
func Default() Extraction {
	return Extraction{
		MinCount:           3,
		NPMIThreshold:      decimal.RequireFromString("0.2"),
		RelevanceThreshold: decimal.RequireFromString("0.3"),
		Weights: Weights{
			NPMI:  decimal.RequireFromString("0.4"),
			IDF:   decimal.RequireFromString("0.3"),
			TFIDF: decimal.RequireFromString("0.3"),
		},
		Dictionary: Dictionary{
			Quantile: 0.9,
			NPMICap:  decimal.RequireFromString("0.8"),
		},
	}
}

// Validate reports the first invalid setting as an ErrInvalidConfig error.
func (c Extraction) Validate() error {
	one := decimal.NewFromInt(1)
	switch {
	case c.MinCount < 1:
		return fmt.Errorf("%w: min count must be >= 1, got %d", internalerr.ErrInvalidConfig, c.MinCount)
	case c.NPMIThreshold.LessThan(one.Neg()) || c.NPMIThreshold.GreaterThan(one):
		return fmt.Errorf("%w: npmi threshold must be in [-1,1], got %s", internalerr.ErrInvalidConfig, c.NPMIThreshold)
	case c.RelevanceThreshold.IsNegative():
		return fmt.Errorf("%w: relevance threshold must be >= 0, got %s", internalerr.ErrInvalidConfig, c.RelevanceThreshold)
	case c.Weights.NPMI.IsNegative() || c.Weights.IDF.IsNegative() || c.Weights.TFIDF.IsNegative():
		return fmt.Errorf("%w: relevance weights must be >= 0", internalerr.ErrInvalidConfig)
	case c.Dictionary.Quantile < 0 || c.Dictionary.Quantile > 1:
		return fmt.Errorf("%w: dictionary quantile must be in [0,1], got %g", internalerr.ErrInvalidConfig, c.Dictionary.Quantile)
	case c.Dictionary.NPMICap.LessThan(one.Neg()) || c.Dictionary.NPMICap.GreaterThan(one):
		return fmt.Errorf("%w: dictionary npmi cap must be in [-1,1], got %s", internalerr.ErrInvalidConfig, c.Dictionary.NPMICap)
	case c.Dictionary.MinCount < 0:
		return fmt.Errorf("%w: dictionary min count must be >= 0, got %d", internalerr.ErrInvalidConfig, c.Dictionary.MinCount)
	case c.Workers < 0:
		return fmt.Errorf("%w: workers must be >= 0, got %d", internalerr.ErrInvalidConfig, c.Workers)
	}
	return nil
}

// DictionaryMinCount returns the effective count floor for dictionary
// proposals.
func (c Extraction) DictionaryMinCount() int {
	if c.Dictionary.MinCount > c.MinCount {
		return c.Dictionary.MinCount
	}
	return c.MinCount
}

// StopwordSet returns the stopwords as a set.
func (c Extraction) StopwordSet() map[string]struct{} {
	return toSet(c.Stopwords)
}

// ExcludedSet returns the excluded terms as a set.
func (c Extraction) ExcludedSet() map[string]struct{} {
	return toSet(c.ExcludedTerms)
}

func toSet(terms []string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		set[t] = struct{}{}
	}
	return set
}

// file is the YAML layout of an extraction config. Pointer fields keep the
// defaults for keys that are absent.
type file struct {
	MinCount           *int     `yaml:"min_count"`
	NPMIThreshold      *float64 `yaml:"npmi_threshold"`
	RelevanceThreshold *float64 `yaml:"relevance_threshold"`
	Stopwords          []string `yaml:"stopwords"`
	ExcludedTerms      []string `yaml:"excluded_terms"`
	Workers            *int     `yaml:"workers"`
	Weights            struct {
		NPMI  *float64 `yaml:"npmi"`
		IDF   *float64 `yaml:"idf"`
		TFIDF *float64 `yaml:"tfidf"`
	} `yaml:"weights"`
	Dictionary struct {
		Quantile *float64 `yaml:"quantile"`
		NPMICap  *float64 `yaml:"npmi_cap"`
		MinCount *int     `yaml:"min_count"`
	} `yaml:"dictionary"`
}

// LoadYAML loads an extraction config on top of Default. The result is
// validated.
//
//	min_count: 3
//	npmi_threshold: 0.2
//	relevance_threshold: 0.3
//	stopwords: [관련, 사항]
//	weights: {npmi: 0.4, idf: 0.3, tfidf: 0.3}
//	dictionary: {quantile: 0.9, npmi_cap: 0.8}
func LoadYAML(path string) (Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Extraction{}, err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Extraction{}, fmt.Errorf("%w: %s: %v", internalerr.ErrInvalidConfig, path, err)
	}

	cfg := Default()
	setInt(&cfg.MinCount, f.MinCount)
	setDecimal(&cfg.NPMIThreshold, f.NPMIThreshold)
	setDecimal(&cfg.RelevanceThreshold, f.RelevanceThreshold)
	setInt(&cfg.Workers, f.Workers)
	setDecimal(&cfg.Weights.NPMI, f.Weights.NPMI)
	setDecimal(&cfg.Weights.IDF, f.Weights.IDF)
	setDecimal(&cfg.Weights.TFIDF, f.Weights.TFIDF)
	if f.Dictionary.Quantile != nil {
		cfg.Dictionary.Quantile = *f.Dictionary.Quantile
	}
	setDecimal(&cfg.Dictionary.NPMICap, f.Dictionary.NPMICap)
	setInt(&cfg.Dictionary.MinCount, f.Dictionary.MinCount)
	cfg.Stopwords = cleanTerms(f.Stopwords)
	cfg.ExcludedTerms = cleanTerms(f.ExcludedTerms)

	if err := cfg.Validate(); err != nil {
		return Extraction{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDecimal(dst *decimal.Decimal, v *float64) {
	if v != nil {
		*dst = decimal.NewFromFloat(*v)
	}
}

// TermList is a YAML list of terms used for stopword and exclusion files.
type TermList struct {
	Terms []string `yaml:"terms"`
}

// LoadTermList loads terms from a YAML file of the form
//
//	terms:
//	  - 관련
//	  - 사항
func LoadTermList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tl TermList
	if err := yaml.Unmarshal(data, &tl); err != nil {
		return nil, err
	}
	return cleanTerms(tl.Terms), nil
}

func cleanTerms(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
