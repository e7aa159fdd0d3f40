package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/atendai/atendai/internal/crm"
	"github.com/atendai/atendai/internal/knowledge"
	"github.com/atendai/atendai/internal/llm"
	"github.com/atendai/atendai/internal/store"
)

// batchStore is the store subset a batch run needs.
type batchStore interface {
	scheduleStore
	ClaimBatchJobs(ctx context.Context, batchID uuid.UUID) ([]store.Job, error)
	ConversationAgentEnabled(ctx context.Context, conversationID string) (bool, error)
	AgentByID(ctx context.Context, id uuid.UUID) (*store.Agent, error)
	MessageMeta(ctx context.Context, messageID string) (*store.MessageMeta, error)
	CompleteBatchJobs(ctx context.Context, batchID uuid.UUID, responseText string, trace []byte) error
	SkipBatchJobs(ctx context.Context, batchID uuid.UUID, note string, trace []byte) error
	FailBatchJobs(ctx context.Context, batchID uuid.UUID, errMsg string, trace []byte) error
	FinishBatch(ctx context.Context, batchID uuid.UUID, status string) error
}

// retriever finds knowledge context for the batch.
type retriever interface {
	Retrieve(ctx context.Context, query string, kbIDs []uuid.UUID) (knowledge.Result, error)
}

// tokenSource resolves CRM access tokens per location.
type tokenSource interface {
	LocationAccessToken(ctx context.Context, locationID string) (string, error)
}

// Orchestrator owns the batch lifecycle after the lock is won: waiting out
// the debounce window, then producing and dispatching one reply for all
// jobs in the batch.
type Orchestrator struct {
	store     batchStore
	waiter    *Waiter
	retriever retriever
	tokens    tokenSource
	crm       crmAPI
	gen       llm.Generator
	logger    *slog.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(s batchStore, r retriever, tokens tokenSource, api crmAPI,
	gen llm.Generator, logger *slog.Logger) (*Orchestrator, error) {
	if s == nil {
		return nil, fmt.Errorf("store is required")
	}
	if r == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}
	if api == nil {
		return nil, fmt.Errorf("crm client is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     s,
		waiter:    NewWaiter(s),
		retriever: r,
		tokens:    tokens,
		crm:       api,
		gen:       gen,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// ProcessBatch waits out the debounce window and runs the batch. Intended
// to run on a background goroutine after winning the batch lock.
func (o *Orchestrator) ProcessBatch(ctx context.Context, batchID uuid.UUID) {
	state, err := o.waiter.Wait(ctx, batchID)
	switch {
	case err != nil && ctx.Err() != nil:
		o.logger.Error("debounce wait cancelled", "batch_id", batchID, "error", err)
		return
	case err != nil:
		// A broken schedule poll must not strand the batch behind its
		// lock; run it best-effort and let claiming sort out the rest.
		o.logger.Warn("debounce wait failed, running batch anyway", "batch_id", batchID, "error", err)
	default:
		o.logger.Debug("debounce window closed", "batch_id", batchID, "state", state.String())
	}

	// Run even when superseded or exhausted: claiming is idempotent and
	// a batch with no pending jobs left is a no-op.
	if err := o.RunBatch(ctx, batchID); err != nil {
		o.logger.Error("batch run failed", "batch_id", batchID, "error", err)
	}
}

// RunBatch processes every pending job of a batch into a single reply. The
// batch ends completed (reply sent, or jobs skipped), or error.
func (o *Orchestrator) RunBatch(ctx context.Context, batchID uuid.UUID) error {
	jobs, err := o.store.ClaimBatchJobs(ctx, batchID)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	if err := o.runClaimed(ctx, batchID, jobs); err != nil {
		if failErr := o.store.FailBatchJobs(ctx, batchID, err.Error(), nil); failErr != nil {
			o.logger.Error("marking jobs errored failed", "batch_id", batchID, "error", failErr)
		}
		if finishErr := o.store.FinishBatch(ctx, batchID, store.BatchStatusError); finishErr != nil {
			o.logger.Error("marking batch errored failed", "batch_id", batchID, "error", finishErr)
		}
		return err
	}
	return nil
}

// skipBatch settles all claimed jobs as skipped and completes the batch.
func (o *Orchestrator) skipBatch(ctx context.Context, batchID uuid.UUID, trace *Trace) error {
	if err := o.store.SkipBatchJobs(ctx, batchID, "Disabled", trace.JSON()); err != nil {
		return err
	}
	return o.store.FinishBatch(ctx, batchID, store.BatchStatusCompleted)
}

func (o *Orchestrator) runClaimed(ctx context.Context, batchID uuid.UUID, jobs []store.Job) error {
	first := jobs[0]
	trace := NewTrace(o.now)

	enabled, err := o.store.ConversationAgentEnabled(ctx, first.ConversationID)
	if err != nil {
		return err
	}
	if !enabled {
		trace.Step("conversation_agent_disabled", map[string]any{"conversationId": first.ConversationID})
		return o.skipBatch(ctx, batchID, trace)
	}

	agent, err := o.store.AgentByID(ctx, first.AgentID)
	if err != nil {
		return err
	}
	if agent == nil || !agent.IsActive {
		trace.Step("agent_inactive", map[string]any{"agentId": first.AgentID})
		return o.skipBatch(ctx, batchID, trace)
	}

	texts := joinMessageTexts(jobs)

	kb, err := o.retriever.Retrieve(ctx, texts, first.KnowledgeBaseIDs)
	if err != nil {
		o.logger.Warn("knowledge retrieval failed", "batch_id", batchID, "error", err)
		kb = knowledge.Result{Mode: knowledge.ModeNone}
	}
	contextText := knowledge.FormatContext(kb.Items)

	token, err := o.tokens.LocationAccessToken(ctx, first.LocationID)
	if err != nil {
		return fmt.Errorf("resolving location token: %w", err)
	}

	history, err := o.crm.ConversationHistory(ctx, token, first.ConversationID)
	if err != nil {
		o.logger.Warn("history fetch failed", "batch_id", batchID, "error", err)
		history = nil
	}

	flags := intentFlags{
		wantsSnapshot: WantsContactSnapshot(texts),
		companyQ:      IsCompanyQuestion(texts),
		addressQ:      IsAddressQuestion(texts),
	}
	trace.Add("kb_retrieval", map[string]any{
		"mode":         kb.Mode,
		"kb_ids_count": len(first.KnowledgeBaseIDs),
		"returned":     len(kb.Items),
	})
	trace.Step("start_run_batch", map[string]any{
		"batchId":        batchID,
		"contactId":      first.ContactID,
		"conversationId": first.ConversationID,
		"locationId":     first.LocationID,
		"flags": map[string]any{
			"keywordWantsContactSnapshot": flags.wantsSnapshot,
			"isCompanyQuestion":           flags.companyQ,
			"isAddressQuestion":           flags.addressQ,
		},
	})

	prefetch := o.prefetchContact(ctx, token, first, flags, trace)

	input := promptInput{
		History:           FormatHistory(history),
		Context:           contextText,
		Texts:             texts,
		Job:               first,
		RegisteredCompany: prefetch.company,
		Snapshot:          prefetch.snapshot,
	}

	finalReply, err := o.resolveReply(ctx, token, first, texts, flags, prefetch,
		SystemPrompt(agent), input, trace)
	if err != nil {
		return err
	}

	if BlocksInternalID(finalReply) {
		finalReply = replyBlockedInternalID
		trace.Step("blocked_internal_id_request", map[string]any{"ok": true})
	}

	o.dispatchReply(ctx, token, first, finalReply, trace)

	if err := o.store.CompleteBatchJobs(ctx, batchID, finalReply, trace.JSON()); err != nil {
		return err
	}
	return o.store.FinishBatch(ctx, batchID, store.BatchStatusCompleted)
}

type intentFlags struct {
	wantsSnapshot bool
	companyQ      bool
	addressQ      bool
}

type prefetchResult struct {
	attempted bool
	ok        bool
	company   string
	address   crm.Address
	snapshot  string
}

// prefetchContact fetches the contact record ahead of generation when the
// messages ask about registered data, so deterministic answers and the
// prompt snapshot have ground truth.
func (o *Orchestrator) prefetchContact(ctx context.Context, token string, job store.Job,
	flags intentFlags, trace *Trace) prefetchResult {
	if !flags.wantsSnapshot {
		return prefetchResult{}
	}
	res := prefetchResult{attempted: true}

	payload, err := o.crm.GetContact(ctx, token, job.ContactID)
	if err != nil {
		trace.Add("ghl_contact_prefetch", map[string]any{"ok": false, "error": err.Error()})
		return res
	}
	res.ok = true
	res.company = crm.ExtractCompanyName(payload)
	res.address = crm.ExtractAddress(payload)
	res.snapshot = ToShortJSON(payload)

	note := "company_field_found"
	if res.company == "" {
		note = "company_field_missing"
	}
	trace.Add("ghl_contact_prefetch", map[string]any{
		"ok":      true,
		"company": res.company,
		"note":    note,
	})
	return res
}

// resolveReply runs the deterministic intent chain and falls through to the
// LLM tool loop when no intent claims the batch.
func (o *Orchestrator) resolveReply(ctx context.Context, token string, job store.Job,
	texts string, flags intentFlags, prefetch prefetchResult, system string,
	input promptInput, trace *Trace) (string, error) {
	switch {
	case flags.wantsSnapshot && !prefetch.ok && !IsCompanyCorrection(texts):
		trace.Step("prefetch_required_but_failed", map[string]any{"ok": false})
		return replyPrefetchFailed, nil

	case IsCompanyUpdateRequest(texts):
		return o.handleCompanyUpdate(ctx, token, job, texts, trace), nil

	case IsCompanyCorrection(texts):
		corrected := ExtractCompanyFromCorrection(texts)
		trace.Step("company_correction_detected", map[string]any{"corrected": orNil(corrected)})
		if corrected == "" {
			return replyCorrectionUnclear, nil
		}
		return fmt.Sprintf("Perfeito — entendi. A empresa correta é *%s*.\n\nQuer que eu atualize a empresa cadastrada no seu cadastro para *%s*?", corrected, corrected), nil

	case flags.companyQ:
		if prefetch.company == "" {
			trace.Step("answer_company_deterministic", map[string]any{"ok": false, "reason": "company_field_missing_or_prefetch_failed"})
			return replyCompanyMissing, nil
		}
		trace.Step("answer_company_deterministic", map[string]any{"ok": true})
		return fmt.Sprintf("A empresa cadastrada no seu cadastro é: *%s*.\n\nSe quiser, posso atualizar para a empresa correta — me diga o nome exato.", prefetch.company), nil

	case flags.addressQ:
		return o.answerAddress(prefetch, trace), nil

	default:
		return o.generateReply(ctx, token, job, system, input, trace)
	}
}

func (o *Orchestrator) handleCompanyUpdate(ctx context.Context, token string, job store.Job,
	texts string, trace *Trace) string {
	target := ExtractCompanyFromUpdateRequest(texts)
	trace.Step("company_update_request_detected", map[string]any{"targetCompany": orNil(target)})
	if target == "" {
		return replyAskCompanyName
	}

	_, err := o.crm.ManageContact(ctx, token, crm.ManageContactRequest{
		ContactID: job.ContactID,
		Updates:   &crm.ContactUpdates{CompanyName: target},
	})
	if err != nil {
		trace.Add("tool_call", map[string]any{"name": llm.ToolManageContact, "ok": false, "error": err.Error()})
		return replyUpdateFailed
	}
	trace.Add("tool_call", map[string]any{"name": llm.ToolManageContact, "ok": true})
	return fmt.Sprintf("Pronto — atualizei a empresa no seu cadastro para: *%s*.", target)
}

func (o *Orchestrator) answerAddress(prefetch prefetchResult, trace *Trace) string {
	if !prefetch.ok {
		trace.Step("answer_address_deterministic", map[string]any{"ok": false, "reason": "prefetch_failed"})
		return replyAddressFailed
	}
	a := prefetch.address
	if a.Empty() {
		trace.Step("answer_address_deterministic", map[string]any{"ok": false})
		return replyAddressEmpty
	}
	trace.Step("answer_address_deterministic", map[string]any{"ok": true})

	var lines []string
	add := func(label, val string) {
		if val != "" {
			lines = append(lines, fmt.Sprintf("- *%s*: %s", label, val))
		}
	}
	add("Rua", a.Street)
	add("Complemento", a.Address2)
	add("Cidade", a.City)
	add("Estado", a.State)
	add("CEP", a.PostalCode)
	add("País", a.Country)

	var missing []string
	if a.Street == "" {
		missing = append(missing, "Rua")
	}
	if a.State == "" {
		missing = append(missing, "Estado")
	}
	if a.PostalCode == "" {
		missing = append(missing, "CEP")
	}
	if a.Country == "" {
		missing = append(missing, "País")
	}

	reply := "No seu cadastro, eu tenho estas informações de endereço:\n" + strings.Join(lines, "\n")
	if len(missing) > 0 {
		reply += fmt.Sprintf("\n\nAinda não tenho: %s.", strings.Join(missing, ", "))
	}
	return reply
}

// generateReply runs the bounded tool-calling loop against the model. A
// model call failure fails the whole batch; only round exhaustion falls
// back to the canned reply.
func (o *Orchestrator) generateReply(ctx context.Context, token string, job store.Job,
	system string, input promptInput, trace *Trace) (string, error) {
	turns := []llm.Turn{{Role: llm.RoleUser, Text: buildUserContent(input)}}

	for range MaxToolRounds {
		reply, err := o.gen.Generate(ctx, system, turns)
		if err != nil {
			trace.Step("gemini_error", map[string]any{"error": err.Error()})
			return "", fmt.Errorf("gemini generation: %w", err)
		}

		if reply.Call == nil {
			trace.Step("gemini_text_response", nil)
			if reply.Text == "" {
				return replyNoAnswer, nil
			}
			return reply.Text, nil
		}

		filled := autofillToolArgs(reply.Call, job)
		trace.Step("tool_autofill", map[string]any{"tool": reply.Call.Name, "autofilled": filled})

		result := dispatchTool(ctx, o.crm, token, reply.Call, trace)

		turns = append(turns,
			llm.Turn{Role: llm.RoleModel, Call: reply.Call},
			llm.Turn{Role: llm.RoleFunction, Result: &llm.ToolResult{Name: reply.Call.Name, Result: result}},
		)
	}
	return replyFallback, nil
}

// dispatchReply sends the final reply back through the CRM. Dispatch is
// best-effort: a send failure is logged but the batch still completes,
// since the decision trace and reply are already committed to the jobs.
func (o *Orchestrator) dispatchReply(ctx context.Context, token string, job store.Job,
	finalReply string, trace *Trace) {
	messageType, providerID := o.inferChannel(ctx, job)
	msg := crm.OutboundMessage{
		Type:                   crm.MapMessageType(messageType, providerID),
		ContactID:              job.ContactID,
		Message:                finalReply,
		ConversationProviderID: providerID,
	}
	if err := o.crm.SendMessage(ctx, token, msg); err != nil {
		o.logger.Warn("reply dispatch failed", "batch_id", job.BatchID, "error", err)
		trace.Step("send_failed", map[string]any{"error": err.Error()})
		return
	}
	trace.Step("reply_sent", map[string]any{"type": msg.Type})
}

// inferChannel recovers the reply channel from the job, falling back to
// the recorded message metadata and finally to WhatsApp.
func (o *Orchestrator) inferChannel(ctx context.Context, job store.Job) (messageType, providerID string) {
	messageType = job.MessageType
	providerID = job.ConversationProviderID
	if messageType != "" && providerID != "" {
		return messageType, providerID
	}

	meta, err := o.store.MessageMeta(ctx, job.MessageID)
	if err != nil {
		o.logger.Warn("message meta lookup failed", "message_id", job.MessageID, "error", err)
	}
	if meta != nil {
		if messageType == "" {
			messageType = meta.MessageType
		}
		if providerID == "" {
			providerID = meta.ConversationProviderID
		}
		if (messageType == "" || providerID == "") && len(meta.RawPayload) > 0 {
			var payload Payload
			if json.Unmarshal(meta.RawPayload, &payload) == nil {
				if messageType == "" {
					messageType = payload.MessageType()
				}
				if providerID == "" {
					providerID = payload.ConversationProviderID()
				}
			}
		}
	}
	if messageType == "" {
		messageType = "WhatsApp"
	}
	return messageType, providerID
}

func joinMessageTexts(jobs []store.Job) string {
	texts := make([]string, 0, len(jobs))
	for _, j := range jobs {
		texts = append(texts, j.MessageText)
	}
	return strings.Join(texts, "\n\n")
}

func orNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}
