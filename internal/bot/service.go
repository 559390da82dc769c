// ==============================================
// File: internal/bot/service.go
// ==============================================
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/config"
	"github.com/nikola43/SPLTokenDeployer/internal/content"
	"github.com/nikola43/SPLTokenDeployer/internal/deploy"
	"github.com/nikola43/SPLTokenDeployer/internal/registry"
	"github.com/nikola43/SPLTokenDeployer/internal/session"
	"github.com/nikola43/SPLTokenDeployer/internal/wallet"
	"github.com/nikola43/SPLTokenDeployer/internal/watcher"
)

// Draft field limits, enforced on free-text input.
const (
	maxSymbolLen = 6
	maxNameLen   = 32
)

// noticeTTL is how long a transient warning stays on screen.
const noticeTTL = 6 * time.Second

// Deps bundles everything the service needs. Clients is keyed by network
// id; every network in the config must have one.
type Deps struct {
	Config   *config.Config
	Sessions *session.Store
	Ledger   *registry.Ledger
	Content  *content.Store
	Msgr     Messenger
	Clients  map[int64]blockchain.Client
	Logger   *zap.Logger
}

// Service owns the conversational flow: pages, callbacks, text input, the
// deposit-gated deployment and the fee-claim actions.
type Service struct {
	cfg      *config.Config
	sessions *session.Store
	ledger   *registry.Ledger
	content  *content.Store
	msgr     Messenger
	clients  map[int64]blockchain.Client
	logger   *zap.Logger

	pipelines map[int64]*deploy.Pipeline
	fees      map[int64]*deploy.Fees
	watchers  map[int64]*watcher.Watcher
}

func NewService(deps Deps) *Service {
	s := &Service{
		cfg:       deps.Config,
		sessions:  deps.Sessions,
		ledger:    deps.Ledger,
		content:   deps.Content,
		msgr:      deps.Msgr,
		clients:   deps.Clients,
		logger:    deps.Logger.Named("bot"),
		pipelines: make(map[int64]*deploy.Pipeline),
		fees:      make(map[int64]*deploy.Fees),
		watchers:  make(map[int64]*watcher.Watcher),
	}
	for id, client := range deps.Clients {
		s.pipelines[id] = deploy.NewPipeline(client, deps.Content, deps.Logger)
		s.fees[id] = deploy.NewFees(client, deps.Logger)
		s.watchers[id] = watcher.New(client, deps.Logger)
	}
	return s
}

// SetMessenger wires the outbound transport after construction. The update
// handler and the messenger share one Telegram API handle, so the service
// has to exist before the handle does.
func (s *Service) SetMessenger(m Messenger) {
	s.msgr = m
}

func (s *Service) network(sess session.Session) config.Network {
	if n, ok := s.cfg.NetworkByID(sess.NetworkID); ok {
		return n
	}
	return s.cfg.DefaultNetwork()
}

func (s *Service) clientFor(n config.Network) blockchain.Client  { return s.clients[n.ID] }
func (s *Service) feesFor(n config.Network) *deploy.Fees         { return s.fees[n.ID] }
func (s *Service) pipelineFor(n config.Network) *deploy.Pipeline { return s.pipelines[n.ID] }
func (s *Service) watcherFor(n config.Network) *watcher.Watcher  { return s.watchers[n.ID] }

// HandleCallback dispatches one inline-button press.
func (s *Service) HandleCallback(ctx context.Context, chatID int64, messageID int, callbackID, data string) {
	defer s.msgr.AnswerCallback(ctx, callbackID)

	action, arg, _ := strings.Cut(data, "@")
	switch action {
	case "chain":
		s.onSelectChain(ctx, chatID, messageID, arg)
	case "back":
		s.editPage(ctx, chatID, messageID, arg)
	case "input":
		s.onInputRequest(ctx, chatID, arg)
	case "confirm":
		s.onConfirm(ctx, chatID, messageID, arg)
	case "deploy":
		s.onDeploy(ctx, chatID, messageID)
	case "token":
		s.editPage(ctx, chatID, messageID, "token@"+arg)
	case "refresh":
		s.editPage(ctx, chatID, messageID, "token@"+arg)
	case "withdraw":
		s.onWithdraw(ctx, chatID, messageID, arg)
	case "existing":
		s.onConnectExisting(ctx, chatID)
	case "generate":
		s.onGenerateWallet(ctx, chatID, messageID)
	case "reveal":
		s.onRevealKey(ctx, chatID, messageID)
	case "disconnect":
		s.onDisconnect(ctx, chatID, messageID)
	case "reset":
		s.onResetDraft(ctx, chatID, messageID)
	case "close":
		s.msgr.DeleteMessage(ctx, chatID, messageID)
	default:
		s.editPage(ctx, chatID, messageID, PageDeploy)
	}
}

// HandleText consumes one free-text message, feeding the pending input
// focus if there is one.
func (s *Service) HandleText(ctx context.Context, chatID int64, messageID int, text string) {
	text = strings.TrimSpace(text)
	if text == "/start" {
		if _, err := s.Render(ctx, chatID, PageWelcome); err != nil {
			s.logger.Error("Failed to render welcome", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return
	}

	sess := s.sessions.Get(chatID)
	if sess.Input == nil {
		return
	}
	focus := *sess.Input

	if focus.Field == session.FieldPrivateKey {
		// The message body is key material; remove it no matter what.
		s.msgr.DeleteMessage(ctx, chatID, messageID)
		s.onPrivateKeyInput(ctx, chatID, focus, text)
		return
	}

	draft := sess.Draft
	if err := applyDraftInput(&draft, focus.Field, text); err != nil {
		s.notice(ctx, chatID, "⚠ "+err.Error())
		return
	}

	s.sessions.Apply(chatID, session.Partial{
		Draft: session.Some(draft),
		Input: session.Some[*session.InputFocus](nil),
	})
	s.msgr.DeleteMessage(ctx, chatID, messageID)
	s.clearPrompt(ctx, chatID, focus)
	s.renderAfterInput(ctx, chatID, focus.ReturnPage)
}

// HandlePhoto consumes an uploaded photo as the draft logo when the logo
// field has focus.
func (s *Service) HandlePhoto(ctx context.Context, chatID int64, messageID int, fileID string) {
	sess := s.sessions.Get(chatID)
	if sess.Input == nil || sess.Input.Field != session.FieldLogo {
		return
	}
	focus := *sess.Input

	data, err := s.msgr.DownloadFile(ctx, fileID)
	if err != nil {
		s.logger.Warn("Logo download failed", zap.Int64("chat_id", chatID), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not fetch the photo, try again.")
		return
	}

	uri, err := s.content.UploadImage(ctx, data, "image/jpeg")
	if err != nil {
		s.logger.Warn("Logo upload failed", zap.Int64("chat_id", chatID), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not store the logo, try again.")
		return
	}

	draft := sess.Draft
	draft.LogoRef = uri
	s.sessions.Apply(chatID, session.Partial{
		Draft: session.Some(draft),
		Input: session.Some[*session.InputFocus](nil),
	})
	s.msgr.DeleteMessage(ctx, chatID, messageID)
	s.clearPrompt(ctx, chatID, focus)
	s.renderAfterInput(ctx, chatID, focus.ReturnPage)
}

func (s *Service) onSelectChain(ctx context.Context, chatID int64, messageID int, arg string) {
	idRaw, page, _ := strings.Cut(arg, "#")
	id, err := strconv.ParseInt(idRaw, 10, 64)
	if err != nil {
		return
	}
	if _, ok := s.cfg.NetworkByID(id); !ok {
		return
	}
	s.sessions.Apply(chatID, session.Partial{NetworkID: session.Some(id)})
	if page == "" {
		page = PageStart
	}
	s.editPage(ctx, chatID, messageID, page)
}

func (s *Service) onInputRequest(ctx context.Context, chatID int64, arg string) {
	fieldRaw, returnPage, _ := strings.Cut(arg, "#")
	field := session.Field(fieldRaw)
	caption, ok := inputCaptions[field]
	if !ok {
		return
	}
	if returnPage == "" {
		returnPage = PageDeploy
	}
	s.promptInput(ctx, chatID, field, returnPage, caption)
}

func (s *Service) promptInput(ctx context.Context, chatID int64, field session.Field, returnPage, caption string) {
	// A new prompt supersedes a stale one.
	if prev := s.sessions.Get(chatID).Input; prev != nil && prev.PromptID != 0 {
		s.msgr.DeleteMessage(ctx, chatID, prev.PromptID)
	}

	promptID, err := s.msgr.SendNotice(ctx, chatID, caption)
	if err != nil {
		s.logger.Error("Failed to send input prompt", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	s.sessions.Apply(chatID, session.Partial{
		Input: session.Some(&session.InputFocus{
			Field:      field,
			ReturnPage: returnPage,
			PromptID:   promptID,
		}),
	})
}

var inputCaptions = map[session.Field]string{
	session.FieldPrivateKey:  "Paste the wallet's base58 private key. The message is removed right away.",
	session.FieldSymbol:      "Send the token symbol (up to 6 characters).",
	session.FieldName:        "Send the token name (up to 32 characters).",
	session.FieldSupply:      "Send the total supply as a whole number.",
	session.FieldTaxes:       "Send the transfer tax percent, e.g. 2.5.",
	session.FieldDescription: "Send the token description.",
	session.FieldLogo:        "Send the logo as a photo, or paste an image URL.",
}

func applyDraftInput(draft *session.TokenDraft, field session.Field, text string) error {
	switch field {
	case session.FieldSymbol:
		if text == "" || len(text) > maxSymbolLen {
			return fmt.Errorf("symbol must be 1 to %d characters", maxSymbolLen)
		}
		draft.Symbol = text
	case session.FieldName:
		if text == "" || len(text) > maxNameLen {
			return fmt.Errorf("name must be 1 to %d characters", maxNameLen)
		}
		draft.Name = text
	case session.FieldSupply:
		supply, err := strconv.ParseUint(strings.ReplaceAll(text, ",", ""), 10, 64)
		if err != nil || supply == 0 {
			return errors.New("supply must be a positive whole number")
		}
		draft.Supply = supply
	case session.FieldTaxes:
		tax, err := strconv.ParseFloat(text, 64)
		if err != nil || tax < 0 || tax > 100 {
			return errors.New("tax must be a percentage between 0 and 100")
		}
		draft.TaxPercent = tax
	case session.FieldDescription:
		draft.Description = text
	case session.FieldLogo:
		draft.LogoRef = text
	default:
		return fmt.Errorf("unsupported field %q", field)
	}
	return nil
}

func (s *Service) onPrivateKeyInput(ctx context.Context, chatID int64, focus session.InputFocus, text string) {
	w, err := wallet.New(text)
	if err != nil {
		s.notice(ctx, chatID, "⚠ That does not look like a valid private key.")
		return
	}
	s.sessions.Apply(chatID, session.Partial{
		Wallet: session.Some(w),
		Input:  session.Some[*session.InputFocus](nil),
	})
	s.clearPrompt(ctx, chatID, focus)
	s.renderAfterInput(ctx, chatID, focus.ReturnPage)
}

func (s *Service) onConnectExisting(ctx context.Context, chatID int64) {
	s.promptInput(ctx, chatID, session.FieldPrivateKey, PageAccount, inputCaptions[session.FieldPrivateKey])
}

func (s *Service) onGenerateWallet(ctx context.Context, chatID int64, messageID int) {
	w, err := wallet.Generate()
	if err != nil {
		s.logger.Error("Keypair generation failed", zap.Int64("chat_id", chatID), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not generate a wallet, try again.")
		return
	}
	s.sessions.Apply(chatID, session.Partial{Wallet: session.Some(w)})
	s.revealKey(ctx, chatID, messageID, w)
}

func (s *Service) onRevealKey(ctx context.Context, chatID int64, messageID int) {
	sess := s.sessions.Get(chatID)
	if sess.Wallet == nil {
		s.editPage(ctx, chatID, messageID, PageWallet)
		return
	}
	s.revealKey(ctx, chatID, messageID, sess.Wallet)
}

// revealKey shows the private key once; leaving the page redraws over it.
func (s *Service) revealKey(ctx context.Context, chatID int64, messageID int, w *wallet.Wallet) {
	text := fmt.Sprintf(
		"<b>Wallet ready</b>\n\nAddress: <code>%s</code>\nPrivate key: <code>%s</code>\n\n"+
			"Save the key now. It is shown only once and never stored.",
		w.PublicKey, w.ExportBase58())
	keyboard := [][]Button{
		{{Label: "Continue", Data: "back@" + PageAccount}},
	}
	if err := s.msgr.EditPage(ctx, chatID, messageID, text, keyboard); err != nil {
		s.logger.Error("Failed to reveal key", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (s *Service) onDisconnect(ctx context.Context, chatID int64, messageID int) {
	s.sessions.Apply(chatID, session.Partial{
		Wallet: session.Some[*wallet.Wallet](nil),
	})
	s.editPage(ctx, chatID, messageID, PageWallet)
}

func (s *Service) onResetDraft(ctx context.Context, chatID int64, messageID int) {
	s.sessions.Apply(chatID, session.Partial{
		Draft: session.Some(session.TokenDraft{LockTime: session.DefaultLockTime}),
	})
	s.editPage(ctx, chatID, messageID, PageDeploy)
}

func (s *Service) onConfirm(ctx context.Context, chatID int64, messageID int, action string) {
	switch action {
	case "deploy":
		sess := s.sessions.Get(chatID)
		draft := sess.Draft
		if draft.Symbol == "" || draft.Name == "" || draft.Supply == 0 {
			s.notice(ctx, chatID, "⚠ Set the symbol, name and supply before deploying.")
			return
		}
		text := fmt.Sprintf(
			"Deploy <b>%s (%s)</b> with a supply of %d and a %.2f%% transfer tax?",
			draft.Name, draft.Symbol, draft.Supply, draft.TaxPercent)
		keyboard := [][]Button{
			{
				{Label: "✅ Proceed", Data: "deploy"},
				{Label: "Cancel", Data: "back@" + PageDeploy},
			},
		}
		if err := s.msgr.EditPage(ctx, chatID, messageID, text, keyboard); err != nil {
			s.logger.Error("Failed to show confirmation", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	default:
		s.logger.Warn("Unknown confirm action", zap.String("action", action))
	}
}

// onDeploy routes the confirmed deployment: straight to the pipeline when
// the wallet already covers the deposit limit, through a disposable deposit
// address otherwise.
func (s *Service) onDeploy(ctx context.Context, chatID int64, messageID int) {
	sess := s.sessions.Get(chatID)
	if sess.Wallet == nil {
		s.notice(ctx, chatID, "⚠ Connect a wallet first.")
		s.editPage(ctx, chatID, messageID, PageWallet)
		return
	}
	network := s.network(sess)
	limit := solToLamports(network.DepositLimitSOL)

	balance, err := s.clientFor(network).GetBalance(ctx, sess.Wallet.PublicKey)
	if err != nil {
		s.logger.Error("Balance check failed", zap.Int64("chat_id", chatID), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not check the wallet balance, try again.")
		return
	}

	if balance >= limit {
		s.runPipeline(ctx, chatID, messageID, network, sess, sess.Wallet)
		return
	}

	deposit, err := wallet.Generate()
	if err != nil {
		s.logger.Error("Deposit keypair generation failed", zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not prepare a deposit address, try again.")
		return
	}

	text := fmt.Sprintf(
		"<b>Fund the deployment</b>\n\nSend at least <b>%.2f %s</b> to\n<code>%s</code>\n\n"+
			"Deployment starts automatically once the deposit confirms.",
		network.DepositLimitSOL, network.Symbol, deposit.PublicKey)
	keyboard := [][]Button{
		{{Label: "Cancel", Data: "back@" + PageDeploy}},
	}
	if err := s.msgr.EditPage(ctx, chatID, messageID, text, keyboard); err != nil {
		s.logger.Error("Failed to show deposit page", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}

	_, err = s.watcherFor(network).Watch(ctx, deposit.PublicKey, limit,
		func(sender solana.PublicKey, lamports uint64) {
			s.logger.Info("Deposit funded, starting deployment",
				zap.Int64("chat_id", chatID),
				zap.String("sender", sender.String()),
				zap.Uint64("lamports", lamports))
			s.runPipeline(ctx, chatID, messageID, network, sess, deposit)
		})
	if err != nil {
		s.logger.Error("Failed to start deposit watch", zap.Int64("chat_id", chatID), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not watch the deposit address, try again.")
	}
}

var stageCaptions = map[string]string{
	deploy.StageUploadMetadata: "Uploading token metadata…",
	deploy.StageCreateMint:     "Creating the mint…",
	deploy.StageTokenAccount:   "Preparing the token account…",
	deploy.StageMintSupply:     "Minting the supply…",
}

func (s *Service) runPipeline(
	ctx context.Context,
	chatID int64,
	messageID int,
	network config.Network,
	sess session.Session,
	payer *wallet.Wallet,
) {
	metadataProgram, err := solana.PublicKeyFromBase58(network.MetadataProgramID)
	if err != nil {
		s.logger.Error("Bad metadata program id", zap.String("network", network.Name), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Deployment is misconfigured for this network.")
		return
	}

	draft := sess.Draft
	params := deploy.Params{
		Name:              draft.Name,
		Symbol:            draft.Symbol,
		Description:       draft.Description,
		Supply:            draft.Supply,
		TaxPercent:        draft.TaxPercent,
		LogoURI:           draft.LogoRef,
		MetadataProgramID: metadataProgram,
		OnStage: func(stage string) {
			caption, ok := stageCaptions[stage]
			if !ok {
				caption = "Please wait…"
			}
			if err := s.msgr.EditPage(ctx, chatID, messageID, "⏳ "+caption, nil); err != nil {
				s.logger.Debug("Failed to update stage notice", zap.Error(err))
			}
		},
	}

	result, err := s.pipelineFor(network).Deploy(ctx, params, payer)
	if err != nil {
		var stageErr *deploy.StageError
		if errors.As(err, &stageErr) {
			s.notice(ctx, chatID, fmt.Sprintf("⚠ Deployment failed at %s. The draft is kept, try again.", stageErr.Stage))
		} else {
			s.notice(ctx, chatID, "⚠ Deployment failed. The draft is kept, try again.")
		}
		s.editPage(ctx, chatID, messageID, PageDeploy)
		return
	}

	address := result.Mint.String()
	record := registry.Token{
		Address:     address,
		Chain:       network.ID,
		Deployer:    sess.Wallet.PublicKey.String(),
		Name:        draft.Name,
		Symbol:      draft.Symbol,
		Supply:      draft.Supply,
		TaxPercent:  draft.TaxPercent,
		Description: draft.Description,
		LogoRef:     draft.LogoRef,
	}
	if err := s.ledger.Append(chatID, record); err != nil && !errors.Is(err, registry.ErrDuplicate) {
		s.logger.Error("Failed to record token", zap.String("mint", address), zap.Error(err))
	}

	// The consumed draft resets; the next deployment starts clean.
	s.sessions.Apply(chatID, session.Partial{
		Draft: session.Some(session.TokenDraft{LockTime: session.DefaultLockTime}),
	})
	s.editPage(ctx, chatID, messageID, "token@"+address)
}

func (s *Service) onWithdraw(ctx context.Context, chatID int64, messageID int, address string) {
	sess := s.sessions.Get(chatID)
	if sess.Wallet == nil {
		s.notice(ctx, chatID, "⚠ Connect a wallet first.")
		return
	}
	network := s.network(sess)

	mint, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return
	}

	fees := s.feesFor(network)
	report, err := fees.ScanWithheld(ctx, mint)
	if err != nil {
		s.logger.Error("Withheld fee scan failed", zap.String("mint", address), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Could not scan for withheld fees, try again.")
		return
	}
	if report.Total == 0 {
		s.notice(ctx, chatID, "Nothing to withdraw right now.")
		s.editPage(ctx, chatID, messageID, "token@"+address)
		return
	}

	sig, err := fees.Claim(ctx, mint, sess.Wallet, report.Addresses())
	if err != nil {
		s.logger.Error("Fee claim failed", zap.String("mint", address), zap.Error(err))
		s.notice(ctx, chatID, "⚠ Withdrawal failed, try again.")
		return
	}

	s.notice(ctx, chatID, fmt.Sprintf("✅ Fees withdrawn.\n<code>%s</code>", sig))
	s.editPage(ctx, chatID, messageID, "token@"+address)
}

func (s *Service) editPage(ctx context.Context, chatID int64, messageID int, page string) {
	if err := s.renderTo(ctx, chatID, messageID, page); err != nil {
		s.logger.Error("Failed to render page",
			zap.Int64("chat_id", chatID),
			zap.String("page", page),
			zap.Error(err))
	}
}

func (s *Service) renderAfterInput(ctx context.Context, chatID int64, page string) {
	if _, err := s.Render(ctx, chatID, page); err != nil {
		s.logger.Error("Failed to render page",
			zap.Int64("chat_id", chatID),
			zap.String("page", page),
			zap.Error(err))
	}
}

func (s *Service) clearPrompt(ctx context.Context, chatID int64, focus session.InputFocus) {
	if focus.PromptID != 0 {
		s.msgr.DeleteMessage(ctx, chatID, focus.PromptID)
	}
}

// notice shows a transient warning that removes itself without disturbing
// the current page.
func (s *Service) notice(ctx context.Context, chatID int64, text string) {
	id, err := s.msgr.SendNotice(ctx, chatID, text)
	if err != nil {
		s.logger.Warn("Failed to send notice", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	time.AfterFunc(noticeTTL, func() {
		s.msgr.DeleteMessage(context.Background(), chatID, id)
	})
}

func solToLamports(sol float64) uint64 {
	return uint64(sol * blockchain.LamportsPerSOL)
}
