package usecases

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zapclinic/internal/entities"
	"zapclinic/internal/interfaces"
)

// ErrRateLimited tells the webhook handler to answer 429. No pipeline side
// effects happened when it is returned.
var ErrRateLimited = errors.New("sender rate limited")

// Fixed replies the pipeline degrades to.
const (
	FallbackReply = "Desculpe, estou com dificuldades técnicas no momento. 🙏 Pode tentar novamente em alguns instantes?"
	HoldingReply  = "Seu atendimento foi encaminhado para nossa equipe. Um atendente humano vai continuar a conversa em breve. 👩‍⚕️"
	WelcomeReply  = "Olá! Sou o assistente virtual da clínica. Posso ajudar com agendamentos, horários, preços e informações. Como posso ajudar?"
	UnclearReply  = "Desculpe, não entendi muito bem. 🤔 Você pode perguntar sobre horários, endereço, preços ou pedir para marcar uma consulta."
)

// OrchestratorConfig tunes the per-sender ingestion rate limit.
type OrchestratorConfig struct {
	RateCapacity   int
	RefillInterval time.Duration
}

// Outcome summarizes one processed inbound message.
type Outcome struct {
	Reply     string
	Sent      bool
	Duplicate bool
	Escalated bool
	Intent    string
	ToolsUsed []string
}

// Orchestrator composes the full inbound pipeline: rate limit, idempotent
// insert, state load, classification, escalation decisioning, retrieval,
// tool-or-completion reply, personalization, loop detection, persistence
// and dispatch.
type Orchestrator struct {
	limiter       interfaces.RateLimiter
	messages      interfaces.MessageStore
	conversations interfaces.ConversationStore
	profiles      interfaces.ProfileStore
	completion    interfaces.CompletionClient
	gateway       interfaces.ChannelGateway
	knowledge     interfaces.KnowledgeSource
	usage         interfaces.UsageRecorder

	classifier   *IntentClassifier
	retriever    *KnowledgeRetriever
	tools        *ToolExecutor
	loops        *LoopDetector
	escalations  *EscalationManager
	personalizer *Personalizer

	cfg    OrchestratorConfig
	logger *slog.Logger
}

func NewOrchestrator(
	limiter interfaces.RateLimiter,
	messages interfaces.MessageStore,
	conversations interfaces.ConversationStore,
	profiles interfaces.ProfileStore,
	completion interfaces.CompletionClient,
	gateway interfaces.ChannelGateway,
	knowledge interfaces.KnowledgeSource,
	usage interfaces.UsageRecorder,
	classifier *IntentClassifier,
	retriever *KnowledgeRetriever,
	tools *ToolExecutor,
	loops *LoopDetector,
	escalations *EscalationManager,
	personalizer *Personalizer,
	cfg OrchestratorConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		limiter:       limiter,
		messages:      messages,
		conversations: conversations,
		profiles:      profiles,
		completion:    completion,
		gateway:       gateway,
		knowledge:     knowledge,
		usage:         usage,
		classifier:    classifier,
		retriever:     retriever,
		tools:         tools,
		loops:         loops,
		escalations:   escalations,
		personalizer:  personalizer,
		cfg:           cfg,
		logger:        logger,
	}
}

// HandleInbound runs one webhook delivery through the pipeline. Channel
// providers retry non-200 responses indefinitely, so every failure past the
// rate limiter degrades to a reply instead of an error: the only error this
// returns is ErrRateLimited.
func (o *Orchestrator) HandleInbound(ctx context.Context, msg *entities.InboundMessage) (outcome *Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("pipeline panic recovered", "err", r, "external_id", msg.ExternalID)
			outcome = &Outcome{Reply: FallbackReply}
			o.dispatch(ctx, msg.Sender, FallbackReply, outcome)
			err = nil
		}
	}()

	// Rate limit before any side effect.
	if !o.limiter.Allow(msg.Sender, o.cfg.RateCapacity, o.cfg.RefillInterval) {
		o.logger.Warn("sender rate limited", "sender", msg.Sender)
		return nil, ErrRateLimited
	}

	if err := o.usage.IncrementReceived(ctx); err != nil {
		o.logger.Error("usage counter failed", "err", err)
	}

	// Idempotent insert: a redelivered external id runs no further stages.
	inserted, existingID, err := o.messages.InsertIfNotExists(ctx, msg)
	if err != nil {
		o.logger.Error("ingress store failed", "err", err, "external_id", msg.ExternalID)
		return o.apologize(ctx, msg), nil
	}
	if !inserted {
		o.logger.Info("duplicate skipped", "external_id", msg.ExternalID, "message_id", existingID)
		return &Outcome{Duplicate: true}, nil
	}

	conv, err := o.conversations.Load(ctx, msg.Sender, msg.DisplayPhone)
	if err != nil {
		o.logger.Error("conversation load failed", "err", err, "sender", msg.Sender)
		return o.apologize(ctx, msg), nil
	}
	conv.AppendTurn(entities.RoleUser, msg.Body, msg.ReceivedAt)

	clinicName := ""
	if clinic, err := o.knowledge.Clinic(ctx); err == nil {
		clinicName = clinic.Name
	}

	intent := o.classifier.Classify(ctx, msg.Body, conv.History, clinicName)
	o.logger.Info("intent classified",
		"sender", msg.Sender, "intent", intent.Name, "confidence", intent.Confidence)

	// Escalated is re-read fresh every turn: a human may have released the
	// conversation (or taken it) since the previous message.
	if conv.Escalated {
		return o.finishTurn(ctx, msg, conv, HoldingReply, &Outcome{
			Reply: HoldingReply, Escalated: true, Intent: intent.Name,
		}), nil
	}

	if reason, escalate := o.escalations.ShouldEscalate(conv, intent); escalate {
		if err := o.escalations.Escalate(ctx, conv, reason); err != nil {
			o.logger.Error("escalation record failed", "err", err)
		}
		return o.finishTurn(ctx, msg, conv, HoldingReply, &Outcome{
			Reply: HoldingReply, Escalated: true, Intent: intent.Name,
		}), nil
	}

	outcome = &Outcome{Intent: intent.Name}
	reply := o.composeReply(ctx, msg, conv, intent, outcome)

	profile, err := o.profiles.Load(ctx, msg.Sender)
	if err != nil {
		o.logger.Warn("profile load failed", "err", err, "sender", msg.Sender)
		profile = nil
	}
	reply = o.personalizer.Personalize(reply, profile, conv.History, intent)

	// Loop detection runs on the outgoing reply, before it is persisted.
	if o.loops.CheckForLoop(ctx, conv, reply) {
		if reason, escalate := o.escalations.ShouldEscalate(conv, intent); escalate {
			if err := o.escalations.Escalate(ctx, conv, reason); err != nil {
				o.logger.Error("escalation record failed", "err", err)
			}
			reply = HoldingReply
			outcome.Escalated = true
		}
	}

	outcome.Reply = reply
	return o.finishTurn(ctx, msg, conv, reply, outcome), nil
}

// composeReply routes the intent to the tool executor or to a grounded
// completion, with deterministic replies for greetings and unclear input.
func (o *Orchestrator) composeReply(ctx context.Context, msg *entities.InboundMessage, conv *entities.Conversation, intent entities.Intent, outcome *Outcome) string {
	if intent.RequiresAction {
		exec := o.tools.Execute(ctx, intent, conv)
		outcome.ToolsUsed = exec.ToolsUsed
		for _, res := range exec.Results {
			o.logger.Info("tool executed",
				"tool", res.ToolName, "success", res.Success, "sender", msg.Sender)
		}
		return exec.ReplyText
	}

	switch intent.Name {
	case entities.IntentGreeting:
		return WelcomeReply
	case entities.IntentUnclear:
		return UnclearReply
	}

	retrieval, err := o.retriever.Retrieve(ctx, msg.Body, intent.Name, intent.Entities, DefaultTopK)
	if err != nil {
		o.logger.Warn("knowledge retrieval failed", "err", err, "intent", intent.Name)
		retrieval = &RetrievalResult{AugmentedPrompt: buildAugmentedPrompt(msg.Body, nil)}
	}

	reply, err := o.completion.Complete(ctx, []entities.PromptMessage{
		{Role: "system", Content: "Você é o assistente virtual de uma clínica no WhatsApp. Seja breve e cordial."},
		{Role: "user", Content: retrieval.AugmentedPrompt},
	})
	if err != nil {
		o.logger.Warn("reply completion failed", "err", err)
		// Single grounded chunk: render it directly rather than apologizing.
		if len(retrieval.Chunks) > 0 {
			return retrieval.Chunks[0].Content
		}
		return FallbackReply
	}
	return reply
}

// finishTurn persists the bot turn and conversation state, then dispatches
// the reply. Send failures are logged, never rolled back.
func (o *Orchestrator) finishTurn(ctx context.Context, msg *entities.InboundMessage, conv *entities.Conversation, reply string, outcome *Outcome) *Outcome {
	conv.AppendTurn(entities.RoleBot, reply, time.Now())
	if err := o.conversations.Save(ctx, conv); err != nil {
		o.logger.Error("conversation save failed", "err", err, "sender", msg.Sender)
	}
	if err := o.profiles.Touch(ctx, msg.Sender); err != nil {
		o.logger.Warn("profile touch failed", "err", err)
	}

	o.dispatch(ctx, msg.Sender, reply, outcome)
	return outcome
}

func (o *Orchestrator) dispatch(ctx context.Context, to, reply string, outcome *Outcome) {
	externalID, err := o.gateway.Send(ctx, to, reply)
	if err != nil {
		o.logger.Error("gateway send failed", "err", err, "to", to)
		return
	}
	outcome.Sent = true
	if err := o.usage.IncrementSent(ctx); err != nil {
		o.logger.Error("usage counter failed", "err", err)
	}
	o.logger.Info("reply dispatched", "to", to, "provider_id", externalID)
}

// apologize handles a stage failure before a reply could be composed.
func (o *Orchestrator) apologize(ctx context.Context, msg *entities.InboundMessage) *Outcome {
	outcome := &Outcome{Reply: FallbackReply}
	o.dispatch(ctx, msg.Sender, FallbackReply, outcome)
	return outcome
}
