package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"websearch-agent/internal/domain"
	"websearch-agent/internal/logger"
	"websearch-agent/internal/websearch"
)

const (
	defaultMaxQuestion = 300
	moduleName         = "usecase"
	stageRewrite       = "rewrite"
	stageSearch        = "search"
	stageAnswer        = "answer"
)

type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type Rewriter interface {
	Rewrite(ctx context.Context, state *domain.ConversationState) (websearch.RewriteResult, error)
}

type Searcher interface {
	Search(ctx context.Context, query string) ([]domain.SearchResult, error)
}

type Answerer interface {
	Answer(ctx context.Context, state *domain.ConversationState, notify websearch.CitationNotifier) (websearch.AnswerResult, error)
}

// StateReadWriter loads and saves conversations. SaveTurn must fail with
// domain.ErrConversationConflict when the stored turn counter no longer
// equals expectedTurns.
type StateReadWriter interface {
	GetHistory(ctx context.Context, conversationID string) (domain.History, error)
	SaveTurn(ctx context.Context, conversationID string, expectedTurns int, removals []domain.RemoveMessage, added []domain.Message) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type AskService struct {
	moderator      Moderator
	rewriter       Rewriter
	searcher       Searcher
	answerer       Answerer
	state          StateReadWriter
	log            logger.Logger
	maxQuestionLen int
	now            func() time.Time
}

type AskInput struct {
	Question       string
	ConversationID string
	// OnCitations, when set, receives the citation map before the answer is
	// generated.
	OnCitations websearch.CitationNotifier
}

type AskOutput struct {
	Answer             string
	ConversationID     string
	SearchQuery        string
	RefinedQuestion    string
	RequireEnhancement bool
	Citations          websearch.CitationMap
}

func NewAskService(m Moderator, rw Rewriter, sr Searcher, a Answerer, s StateReadWriter, log logger.Logger, maxQuestionLen int) (*AskService, error) {
	if m == nil {
		return nil, errors.New("usecase: moderator must not be nil")
	}
	if rw == nil {
		return nil, errors.New("usecase: rewriter must not be nil")
	}
	if sr == nil {
		return nil, errors.New("usecase: searcher must not be nil")
	}
	if a == nil {
		return nil, errors.New("usecase: answerer must not be nil")
	}
	if s == nil {
		return nil, errors.New("usecase: state store must not be nil")
	}
	if log == nil {
		log = logger.NewNop()
	}
	if maxQuestionLen <= 0 {
		maxQuestionLen = defaultMaxQuestion
	}
	return &AskService{
		moderator:      m,
		rewriter:       rw,
		searcher:       sr,
		answerer:       a,
		state:          s,
		log:            log,
		maxQuestionLen: maxQuestionLen,
		now:            time.Now,
	}, nil
}

// Ask runs one conversation turn. Nothing is persisted unless the answer is
// produced. Overlapping turns of one conversation are serialized optimistically:
// the first to save wins and the others fail with ErrorConflict.
func (s *AskService) Ask(ctx context.Context, in AskInput) (AskOutput, error) {
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return AskOutput{}, newError(ErrorInvalidInput, "empty_question", nil)
	}
	if len(question) > s.maxQuestionLen {
		return AskOutput{}, newError(ErrorInvalidInput, "question_too_long", nil)
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	flagged, err := s.moderator.Moderate(ctx, question)
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return AskOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
		}
		return AskOutput{}, newError(ErrorUpstream, "moderation_error", err)
	}
	if flagged {
		return AskOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
	}

	history, err := s.state.GetHistory(ctx, convID)
	if err != nil {
		return AskOutput{}, newError(ErrorInternal, "state_read_error", err)
	}

	questionMsg := domain.Message{
		ID:        newMessageID(),
		Role:      domain.RoleUser,
		Content:   question,
		CreatedAt: s.now().UTC(),
	}
	state := &domain.ConversationState{Messages: history.Messages, Question: &questionMsg}
	state.Append(questionMsg)

	rewrite, err := s.rewriter.Rewrite(ctx, state)
	if err != nil {
		return AskOutput{}, s.stageError(convID, stageRewrite, err)
	}
	refined := rewrite.Refined
	state.Refined = &refined
	state.Apply(rewrite.Removals)

	query := question
	if refined.RequireEnhancement {
		query = refined.RefinedQuestion
	}
	results, err := s.searcher.Search(ctx, query)
	if err != nil {
		return AskOutput{}, s.stageError(convID, stageSearch, err)
	}
	state.SetSearchResults(results)

	answer, err := s.answerer.Answer(ctx, state, in.OnCitations)
	if err != nil {
		return AskOutput{}, s.stageError(convID, stageAnswer, err)
	}

	answerMsg := domain.Message{
		ID:        newMessageID(),
		Role:      domain.RoleAssistant,
		Content:   answer.Answer,
		CreatedAt: s.now().UTC(),
	}
	if err := s.state.SaveTurn(ctx, convID, history.Turns, rewrite.Removals, []domain.Message{questionMsg, answerMsg}); err != nil {
		if errors.Is(err, domain.ErrConversationConflict) {
			s.log.Warn(moduleName, "concurrent turn rejected", map[string]any{
				"conversation_id": convID,
				"expected_turns":  history.Turns,
			})
			return AskOutput{}, newError(ErrorConflict, "conversation_conflict", err)
		}
		return AskOutput{}, newError(ErrorInternal, "state_write_error", err)
	}

	s.log.Info(moduleName, "turn completed", map[string]any{
		"conversation_id": convID,
		"search_query":    query,
		"results":         len(results),
		"citations":       answer.Citations.Len(),
		"removed":         len(rewrite.Removals),
	})

	return AskOutput{
		Answer:             answer.Answer,
		ConversationID:     convID,
		SearchQuery:        query,
		RefinedQuestion:    refined.RefinedQuestion,
		RequireEnhancement: refined.RequireEnhancement,
		Citations:          answer.Citations,
	}, nil
}

// stageError maps a failed workflow stage to a coded usecase error.
func (s *AskService) stageError(convID, stage string, err error) *Error {
	var out *Error
	var wsErr *websearch.Error
	switch {
	case websearch.IsMalformedState(err):
		out = newError(ErrorInternal, stage+"_malformed_state", err)
	case isRateLimited(err):
		out = newError(ErrorRateLimited, stage+"_rate_limited", err)
	case errors.As(err, &wsErr) && wsErr.Reason == websearch.ReasonSchemaViolation:
		out = newError(ErrorUpstream, stage+"_malformed_response", err)
	case websearch.IsCollaboratorFailure(err), stage == stageSearch:
		out = newError(ErrorUpstream, stage+"_error", err)
	default:
		// workflow stages only return classified errors
		out = newError(ErrorInternal, stage+"_unexpected_error", err)
	}
	s.log.Error(moduleName, "stage failed", map[string]any{
		"conversation_id": convID,
		"stage":           stage,
		"reason":          out.Reason,
		"error":           err,
	})
	return out
}

func isRateLimited(err error) bool {
	status, ok := upstreamStatusCode(err)
	return ok && status == 429
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}

// newMessageID returns a time-ordered id so stored messages sort temporally.
var newMessageID = func() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
