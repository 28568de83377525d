package synth

import (
	"context"
	"math"

	"github.com/nkapre/docqa/internal/config"
	"github.com/nkapre/docqa/internal/domain/ragmodel"
	"github.com/nkapre/docqa/internal/rag/llm"
	"github.com/nkapre/docqa/internal/rag/retriever"
	"github.com/nkapre/docqa/pkg/logger_i"
)

// QueryState tracks a single question through synthesis:
// NO_CONTEXT -> REFUSED (no model call), or
// HAS_CONTEXT -> GENERATING -> {GROUNDED, REFUSED_BY_MODEL, MODEL_ERROR}.
type QueryState string

const (
	StateNoContext      QueryState = "NO_CONTEXT"
	StateHasContext     QueryState = "HAS_CONTEXT"
	StateGenerating     QueryState = "GENERATING"
	StateGrounded       QueryState = "GROUNDED"
	StateRefusedByModel QueryState = "REFUSED_BY_MODEL"
	StateModelError     QueryState = "MODEL_ERROR"
)

// user facing message for provider failures - deliberately distinct from
// the grounded refusal sentence so "service broke" and "no data" never blur
const modelErrorMessage = "Error connecting to AI engine."

type Synthesizer struct {
	provider llm.Provider
	logger   *logger_i.Logger
}

func New(provider llm.Provider) *Synthesizer {
	return &Synthesizer{
		provider: provider,
		logger:   logger_i.NewLogger("Synthesizer"),
	}
}

// Synthesize turns a retrieval result into a typed answer. It never
// returns an error: every failure mode resolves to a well-formed
// AnswerResult so the caller and the audit log always see one of
// GROUNDED / REFUSED / MODEL_ERROR.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, ret retriever.Result) ragmodel.AnswerResult {
	log := s.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	if ret.NoContext {
		log.Debug("state transition", "state", StateNoContext)
		return Refusal()
	}

	log.Debug("state transition", "state", StateGenerating)
	raw, err := s.provider.Generate(ctx, SystemInstructions(), BuildPrompt(ret.Context, question))
	if err != nil {
		log.Error("generation failed", "state", StateModelError, "error", err)
		return ModelError()
	}

	if IsRefusal(raw) {
		log.Debug("state transition", "state", StateRefusedByModel)
		return Refusal()
	}

	citations := validCitations(ExtractCitations(raw), ret.Retrieval.Matches)
	confidence := confidenceFor(citations, ret.Retrieval.Matches)

	log.Debug("state transition", "state", StateGrounded, "citations", len(citations), "confidence", confidence)
	return ragmodel.AnswerResult{
		Text:       raw,
		Citations:  citations,
		Confidence: confidence,
		Status:     ragmodel.AnswerGrounded,
	}
}

// Refusal is the canonical grounded refusal, shared by every path that
// declines to answer.
func Refusal() ragmodel.AnswerResult {
	return ragmodel.AnswerResult{
		Text:       config.RefusalSentence,
		Confidence: 0,
		Status:     ragmodel.AnswerRefused,
		Refused:    true,
	}
}

// ModelError is the canonical infrastructure-failure answer.
func ModelError() ragmodel.AnswerResult {
	return ragmodel.AnswerResult{
		Text:       modelErrorMessage,
		Confidence: 0,
		Status:     ragmodel.AnswerModelError,
	}
}

// validCitations keeps only names that correspond to retrieved documents.
// The model is asked nicely to cite what it was given; fabricated names
// are dropped instead of trusted.
func validCitations(cited []string, matches []ragmodel.ScoredChunk) []string {
	retrieved := make(map[string]bool, len(matches))
	for _, m := range matches {
		retrieved[m.DocName] = true
	}
	valid := make([]string, 0, len(cited))
	for _, name := range cited {
		if retrieved[name] {
			valid = append(valid, name)
		}
	}
	return valid
}

// confidenceFor derives confidence from the retrieval scores of the
// chunks actually cited - the mean of their similarity scores. When the
// model cited nothing usable, the mean over the whole supplied context is
// used so the number stays reproducible from the same inputs.
func confidenceFor(citations []string, matches []ragmodel.ScoredChunk) float64 {
	if len(matches) == 0 {
		return 0
	}

	cited := make(map[string]bool, len(citations))
	for _, name := range citations {
		cited[name] = true
	}

	var sum float64
	var count int
	for _, m := range matches {
		if len(citations) == 0 || cited[m.DocName] {
			sum += m.Score
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Round(sum/float64(count)*100) / 100
}
