package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"websearch-agent/internal/config"
	"websearch-agent/internal/integrations/openai"
	"websearch-agent/internal/integrations/paramstore"
	"websearch-agent/internal/integrations/tavily"
	"websearch-agent/internal/logger"
	"websearch-agent/internal/repository"
	"websearch-agent/internal/repository/memory"
	"websearch-agent/internal/usecase"
	"websearch-agent/internal/websearch"
)

type Container struct {
	AskService *usecase.AskService
}

// NewContainer wires the turn workflow. Conversations go to DynamoDB when a
// state table is configured and to process memory otherwise.
func NewContainer(_ context.Context, awsCfg aws.Config, cfg *config.Config, log logger.Logger) (*Container, error) {
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: paramstore: %w", err)
	}

	var store usecase.StateReadWriter
	if cfg.State.Table != "" {
		store, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.State.Table)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: state store: %w", err)
		}
	} else {
		log.Warn("bootstrap", "STATE_TABLE not set, keeping conversations in memory", nil)
		store = memory.NewConversationRepository()
	}

	llm, err := openai.NewClient(params, cfg.OpenAICredential(), openai.WithBaseURL(cfg.Models.OpenAIBaseURL))
	if err != nil {
		return nil, fmt.Errorf("bootstrap: openai: %w", err)
	}
	search, err := tavily.NewClient(params, cfg.TavilyCredential(),
		tavily.WithDepth(cfg.Search.Depth),
		tavily.WithMaxResults(cfg.Search.MaxResults),
	)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: tavily: %w", err)
	}

	rewriter, err := websearch.NewQuestionRewriter(llm, websearch.ModelConfig{
		ModelID:    cfg.Models.RewriterModel,
		Credential: cfg.OpenAICredential(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: rewriter: %w", err)
	}
	answerer, err := websearch.NewAnswerGenerator(llm, websearch.ModelConfig{
		ModelID:    cfg.Models.AnswerModel,
		Credential: cfg.OpenAICredential(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: answer generator: %w", err)
	}

	ask, err := usecase.NewAskService(llm, rewriter, search, answerer, store, log, cfg.App.MaxQuestionLen)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: ask service: %w", err)
	}
	return &Container{AskService: ask}, nil
}
