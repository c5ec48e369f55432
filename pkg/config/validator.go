package config

import (
	"fmt"
	"net/url"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if len(c.Sources.Web) == 0 && len(c.Sources.PDFs) == 0 {
		errors = append(errors, ValidationError{
			Field:   "sources",
			Message: "at least one web URL or PDF source is required",
		})
	}

	for _, u := range c.Sources.Web {
		parsed, err := url.Parse(u)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			errors = append(errors, ValidationError{
				Field:   "sources.web",
				Message: fmt.Sprintf("invalid URL: %s", u),
			})
		}
	}

	errors = append(errors, c.Evaluator.validate("evaluator")...)
	errors = append(errors, c.Generator.validate("generator")...)

	if c.Processor.MaxWords < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.max_words",
			Message: "max_words must be positive",
		})
	}

	if c.Processor.OverlapWords < 0 || c.Processor.OverlapWords >= c.Processor.MaxWords {
		errors = append(errors, ValidationError{
			Field:   "processor.overlap_words",
			Message: "overlap_words must be non-negative and less than max_words",
		})
	}

	if c.Params.NumQuestions < 1 {
		errors = append(errors, ValidationError{
			Field:   "params.num_questions",
			Message: "num_questions must be positive",
		})
	}

	if c.Params.RetryAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "params.retry_attempts",
			Message: "retry_attempts must be positive",
		})
	}

	if c.Params.MinCoherence < 1 || c.Params.MinCoherence > 5 {
		errors = append(errors, ValidationError{
			Field:   "params.min_coherence",
			Message: "min_coherence must be between 1 and 5",
		})
	}

	if c.Params.FuzzyThreshold <= 0 || c.Params.FuzzyThreshold > 1 {
		errors = append(errors, ValidationError{
			Field:   "params.fuzzy_threshold",
			Message: "fuzzy_threshold must be in (0, 1]",
		})
	}

	if c.Params.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "params.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	return errors
}

func (p ProviderConfig) validate(field string) []ValidationError {
	var errors []ValidationError

	if parsed, err := url.Parse(p.BaseURL); err != nil || !strings.HasPrefix(parsed.Scheme, "http") {
		errors = append(errors, ValidationError{
			Field:   field + ".base_url",
			Message: "invalid provider base URL",
		})
	}

	if p.Model == "" {
		errors = append(errors, ValidationError{
			Field:   field + ".model",
			Message: "model is required",
		})
	}

	if p.Temperature < 0 || p.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   field + ".temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	if p.MaxTokens < 1 {
		errors = append(errors, ValidationError{
			Field:   field + ".max_tokens",
			Message: "max_tokens must be positive",
		})
	}

	return errors
}
