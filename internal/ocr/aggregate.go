package ocr

import "strings"

// Outcome is the aggregated result of a run: trimmed text for every pass
// that succeeded and the error of every pass that failed.
//
// A failed pass has no entry in Texts. An empty string in Texts means the
// pass succeeded and recognized nothing.
type Outcome struct {
	// Passes lists pass names in run order.
	Passes []string

	// Texts maps a successful pass name to its whitespace-trimmed text.
	Texts map[string]string

	// Errors maps a failed pass name to its error.
	Errors map[string]error
}

// Aggregate merges per-pass results into an Outcome.
func Aggregate(results []Result) *Outcome {
	out := &Outcome{
		Passes: make([]string, 0, len(results)),
		Texts:  make(map[string]string, len(results)),
		Errors: make(map[string]error),
	}
	for _, r := range results {
		out.Passes = append(out.Passes, r.Name)
		if r.Err != nil {
			out.Errors[r.Name] = r.Err
			continue
		}
		out.Texts[r.Name] = strings.TrimSpace(r.Text)
	}
	return out
}

// OK reports whether every pass succeeded.
func (o *Outcome) OK() bool { return len(o.Errors) == 0 }

// AllFailed reports whether no pass succeeded.
func (o *Outcome) AllFailed() bool { return len(o.Texts) == 0 }

// Text returns the trimmed text of a pass and whether the pass succeeded.
func (o *Outcome) Text(name string) (string, bool) {
	text, ok := o.Texts[name]
	return text, ok
}

// Err returns the error of the first failed pass in run order, or nil.
func (o *Outcome) Err() error {
	for _, name := range o.Passes {
		if err, ok := o.Errors[name]; ok {
			return err
		}
	}
	return nil
}

// ParsedResult carries one transcription in the single-pass contract.
type ParsedResult struct {
	ParsedText string `json:"ParsedText"`
}

// SingleResponse is the legacy single-pass response body.
type SingleResponse struct {
	ParsedResults         []ParsedResult `json:"ParsedResults"`
	IsErroredOnProcessing bool           `json:"IsErroredOnProcessing"`
}

// PassError describes a failed pass in a response body.
type PassError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// DualResponse is the dual-pass response body. A failed pass's field is
// omitted and its failure is listed in Errors.
type DualResponse struct {
	Alphabetic            *string              `json:"alphabetic,omitempty"`
	Numeric               *string              `json:"numeric,omitempty"`
	IsErroredOnProcessing bool                 `json:"IsErroredOnProcessing"`
	Errors                map[string]PassError `json:"errors,omitempty"`
}

// PassesResponse is the response body for caller-defined passes, keyed by
// pass name.
type PassesResponse struct {
	Results               map[string]string    `json:"results"`
	IsErroredOnProcessing bool                 `json:"IsErroredOnProcessing"`
	Errors                map[string]PassError `json:"errors,omitempty"`
}

// SingleResponse reshapes the first pass into the single-field contract.
// Callers should check Err first: a failed pass yields no ParsedResults.
func (o *Outcome) SingleResponse() SingleResponse {
	resp := SingleResponse{
		ParsedResults:         []ParsedResult{},
		IsErroredOnProcessing: !o.OK(),
	}
	if len(o.Passes) == 0 {
		return resp
	}
	if text, ok := o.Texts[o.Passes[0]]; ok {
		resp.ParsedResults = append(resp.ParsedResults, ParsedResult{ParsedText: text})
	}
	return resp
}

// DualResponse renders the alphabetic and numeric passes.
func (o *Outcome) DualResponse() DualResponse {
	resp := DualResponse{
		IsErroredOnProcessing: !o.OK(),
		Errors:                o.passErrors(),
	}
	if text, ok := o.Texts[PassAlphabetic]; ok {
		resp.Alphabetic = &text
	}
	if text, ok := o.Texts[PassNumeric]; ok {
		resp.Numeric = &text
	}
	return resp
}

// PassesResponse renders every pass keyed by name.
func (o *Outcome) PassesResponse() PassesResponse {
	results := make(map[string]string, len(o.Texts))
	for name, text := range o.Texts {
		results[name] = text
	}
	return PassesResponse{
		Results:               results,
		IsErroredOnProcessing: !o.OK(),
		Errors:                o.passErrors(),
	}
}

func (o *Outcome) passErrors() map[string]PassError {
	if len(o.Errors) == 0 {
		return nil
	}
	errs := make(map[string]PassError, len(o.Errors))
	for name, err := range o.Errors {
		errs[name] = PassError{Kind: KindOf(err), Message: err.Error()}
	}
	return errs
}
