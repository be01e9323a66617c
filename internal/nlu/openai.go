package nlu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/pkg/config"
	"github.com/Nickdtt/ia-crm/pkg/metrics"
)

const answerSystemPrompt = `Você é o agente virtual da "Isso não é uma agência", estúdio de crescimento digital.

O cliente fez uma pergunta. Use o CONTEXTO abaixo (extraído dos documentos da empresa) para responder com precisão.

REGRAS:
- Responda de forma OBJETIVA (máximo 3-4 linhas)
- Use APENAS informações do contexto fornecido — não invente dados
- Se o contexto não contiver a resposta, diga que pode verificar e ofereça a consultoria gratuita
- SEM pressionar, seja consultivo e natural

CONTEXTO DOS DOCUMENTOS:
%s`

var resultLineRegex = regexp.MustCompile(`(\d{2})/(\d{2})/(\d{4})\s+(\d{2}):(\d{2})`)

// OpenAI implements Understander over the chat-completions API. Every call
// runs under the configured timeout, transient failures are retried, and a
// circuit breaker makes a dead collaborator fail fast so callers drop to the
// deterministic fallbacks without waiting out the timeout each turn.
type OpenAI struct {
	client      *openai.Client
	model       string
	timeout     time.Duration
	temperature float32
	loc         *time.Location
	breaker     *apperrors.CircuitBreaker
	now         func() time.Time
	log         *slog.Logger
}

// NewOpenAI builds the LLM-backed understander. loc is the business timezone
// used to anchor extracted timestamps.
func NewOpenAI(cfg config.LLMConfig, loc *time.Location, log *slog.Logger) *OpenAI {
	if log == nil {
		log = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		temperature: cfg.Temperature,
		loc:         loc,
		breaker:     apperrors.NewCircuitBreaker(),
		now:         time.Now,
		log:         log,
	}
}

// WithClock overrides the time source. Tests only.
func (o *OpenAI) WithClock(now func() time.Time) *OpenAI {
	o.now = now
	return o
}

// ClassifyIntent maps a user message onto the closed intent set.
func (o *OpenAI) ClassifyIntent(ctx context.Context, text string) (Intent, error) {
	prompt := fmt.Sprintf(`Analise esta mensagem de um cliente:

"%s"

Classifique em UMA das categorias:
- AGENDAR: quer agendar/marcar uma reunião ou consultoria
- ACEITAR: aceitou uma proposta ("sim", "pode", "claro", "vamos lá")
- RECUSAR: recusou ou adiou ("não", "agora não", "depois", "talvez")
- PERGUNTA: fez uma pergunta ou pediu informação
- OUTRO: nenhuma das anteriores

Responda APENAS com a categoria.`, text)

	reply, err := o.complete(ctx, "classify_intent", nil, prompt)
	if err != nil {
		return IntentUnknown, err
	}

	switch {
	case strings.Contains(reply, "AGENDAR"):
		return IntentSchedule, nil
	case strings.Contains(reply, "ACEITAR"):
		return IntentAccept, nil
	case strings.Contains(reply, "RECUSAR"):
		return IntentDecline, nil
	case strings.Contains(reply, "PERGUNTA"):
		return IntentQuestion, nil
	default:
		return IntentUnknown, nil
	}
}

// ExtractDateTime asks the model for a "RESULTADO: DD/MM/YYYY HH:MM" line and
// parses it in the business timezone. contextDate resolves time-only replies
// against the previously requested date.
func (o *OpenAI) ExtractDateTime(ctx context.Context, text string, contextDate *time.Time) (time.Time, error) {
	now := o.now().In(o.loc)

	contextLine := ""
	if contextDate != nil {
		contextLine = fmt.Sprintf(
			"\n- Data da tentativa anterior: %s — SE o usuário disser apenas horário (ex: '10h', 'às 14'), USE ESTA DATA",
			contextDate.In(o.loc).Format("02/01/2006"),
		)
	}

	prompt := fmt.Sprintf(`Você extrai datas e horários de mensagens naturais em português.

CONTEXTO:
- Hoje é: %s
- Horário comercial: Segunda a Sexta, 9h-12h e 14h-18h%s

MENSAGEM DO USUÁRIO:
"%s"

INSTRUÇÕES:
1. Dias da semana (ex: "terça", "quinta") = próxima ocorrência desse dia
2. Horários como "11h", "às 14", "10:00" = converta para HH:00
3. Se NÃO houver data/hora clara (ex: "quero sim", "ok"), responda NENHUM

FORMATO DE SAÍDA (OBRIGATÓRIO):
RESULTADO: DD/MM/YYYY HH:MM
OU
RESULTADO: NENHUM`, now.Format("02/01/2006 15:04"), contextLine, text)

	reply, err := o.complete(ctx, "extract_datetime", nil, prompt)
	if err != nil {
		return time.Time{}, err
	}

	if strings.Contains(strings.ToUpper(reply), "NENHUM") {
		return time.Time{}, ErrNoDateTime
	}

	m := resultLineRegex.FindStringSubmatch(reply)
	if m == nil {
		o.log.Warn("collaborator returned unparseable datetime", slog.String("reply", reply))
		return time.Time{}, ErrNoDateTime
	}

	return time.Date(
		atoi(m[3]), time.Month(atoi(m[2])), atoi(m[1]),
		atoi(m[4]), atoi(m[5]), 0, 0, o.loc,
	), nil
}

// AnswerQuestion produces a short grounded answer from the retrieved docs.
func (o *OpenAI) AnswerQuestion(ctx context.Context, question string, docs []string) (string, error) {
	ragContext := "(Nenhum documento relevante encontrado)"
	if len(docs) > 0 {
		ragContext = strings.Join(docs, "\n\n---\n\n")
	}

	system := fmt.Sprintf(answerSystemPrompt, ragContext)
	user := fmt.Sprintf("Pergunta do cliente: %q\n\nSua resposta:", question)

	return o.complete(ctx, "answer_question", &system, user)
}

func (o *OpenAI) complete(ctx context.Context, call string, system *string, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != nil {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: *system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	var reply string

	err := o.breaker.Call(func() error {
		return apperrors.WithRetry(ctx, func() error {
			callCtx, cancel := context.WithTimeout(ctx, o.timeout)
			defer cancel()

			resp, err := o.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
				Model:       o.model,
				Messages:    messages,
				Temperature: o.temperature,
			})
			if err != nil {
				return apperrors.NewCollaboratorError(call, err)
			}
			if len(resp.Choices) == 0 {
				return apperrors.NewCollaboratorError(call, fmt.Errorf("empty completion"))
			}

			reply = strings.TrimSpace(resp.Choices[0].Message.Content)
			return nil
		})
	})
	if err != nil {
		metrics.RecordCollaboratorCall(call, "error")
		o.log.Warn("collaborator call failed", slog.String("call", call), slog.Any("error", err))

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			err = apperrors.NewCollaboratorError(call, err)
		}
		return "", err
	}

	metrics.RecordCollaboratorCall(call, "ok")
	return reply, nil
}
