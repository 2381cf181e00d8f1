package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/GoPolymarket/polymarket-arb/pkg/bot"
)

// fileSource reads a JSON array of opportunities from a file on every scan,
// or once from stdin when no path is given.
type fileSource struct {
	path string
}

func newFileSource(path string) fileSource {
	return fileSource{path: path}
}

func (s fileSource) Opportunities(context.Context) ([]bot.Opportunity, error) {
	var r io.Reader = os.Stdin
	if s.path != "" {
		f, err := os.Open(s.path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	return decodeOpportunities(r)
}

func decodeOpportunities(r io.Reader) ([]bot.Opportunity, error) {
	var opps []bot.Opportunity
	if err := json.NewDecoder(r).Decode(&opps); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode opportunities: %w", err)
	}
	return opps, nil
}
