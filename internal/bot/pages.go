// ==============================================
// File: internal/bot/pages.go
// ==============================================
package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/blockchain"
	"github.com/nikola43/SPLTokenDeployer/internal/config"
	"github.com/nikola43/SPLTokenDeployer/internal/session"
)

// Page names form a closed set; anything else renders the deploy page.
const (
	PageWelcome = "welcome"
	PageStart   = "start"
	PageWallet  = "wallet"
	PageAccount = "account"
	PageKey     = "key"
	PageDeploy  = "deploy"
	PageList    = "list"
)

var tokenPagePattern = regexp.MustCompile(`^token@([1-9A-HJ-NP-Za-km-z]{32,44})$`)

// Render sends the page as a fresh message and returns its message id.
// Unrecognized pages fall back to the deploy page; Render never rejects a
// page name.
func (s *Service) Render(ctx context.Context, chatID int64, page string) (int, error) {
	text, keyboard := s.buildPage(ctx, chatID, page)
	return s.msgr.SendPage(ctx, chatID, text, keyboard)
}

// renderTo redraws the page in place of an existing message.
func (s *Service) renderTo(ctx context.Context, chatID int64, messageID int, page string) error {
	text, keyboard := s.buildPage(ctx, chatID, page)
	return s.msgr.EditPage(ctx, chatID, messageID, text, keyboard)
}

func (s *Service) buildPage(ctx context.Context, chatID int64, page string) (string, [][]Button) {
	if match := tokenPagePattern.FindStringSubmatch(page); match != nil {
		return s.tokenPage(ctx, chatID, match[1])
	}

	switch page {
	case PageWelcome:
		return s.welcomePage(chatID)
	case PageStart:
		return s.startPage(chatID)
	case PageWallet:
		return s.walletPage(ctx, chatID)
	case PageAccount, PageKey:
		return s.accountPage(ctx, chatID)
	case PageList:
		return s.listPage(chatID)
	default:
		return s.deployPage(chatID)
	}
}

// chainRow renders one selector button per visible network; the payload
// carries the current page so selection re-renders it.
func (s *Service) chainRow(selectedID int64, page string) []Button {
	var row []Button
	for _, n := range s.cfg.Networks() {
		label := n.Name
		if n.ID == selectedID {
			label = "• " + label
		}
		row = append(row, Button{Label: label, Data: fmt.Sprintf("chain@%d#%s", n.ID, page)})
	}
	return row
}

func (s *Service) welcomePage(chatID int64) (string, [][]Button) {
	// Entering from the top resets any half-finished mixer interaction.
	s.sessions.Apply(chatID, session.Partial{
		MixerStatus:   session.Some(false),
		MixerAmount:   session.Some(0.0),
		MixerReceiver: session.Some(""),
	})

	text := "<b>Token Deployer</b>\n\n" +
		"Deploy an SPL Token-2022 with a transfer tax in a few taps:\n" +
		"connect a wallet, describe the token, fund the deployment."
	keyboard := [][]Button{
		{{Label: "Get Started", Data: "back@" + PageStart}},
	}
	return text, keyboard
}

func (s *Service) startPage(chatID int64) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)

	text := fmt.Sprintf("<b>Main Menu</b>\n\nNetwork: <b>%s</b>", network.Name)
	keyboard := [][]Button{
		s.chainRow(network.ID, PageStart),
		{{Label: "💳 Wallet", Data: "back@" + PageWallet}},
		{{Label: "🚀 Deploy Token", Data: "back@" + PageDeploy}},
		{{Label: "📜 My Tokens", Data: "back@" + PageList}},
	}
	return text, keyboard
}

func (s *Service) walletPage(ctx context.Context, chatID int64) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)

	if sess.Wallet == nil {
		text := "<b>Wallet</b>\n\nNo wallet connected."
		keyboard := [][]Button{
			s.chainRow(network.ID, PageWallet),
			{{Label: "🔑 Connect existing", Data: "existing"}},
			{{Label: "✨ Generate new", Data: "generate"}},
			{{Label: "⬅ Back", Data: "back@" + PageStart}},
		}
		return text, keyboard
	}

	text := fmt.Sprintf("<b>Wallet</b>\n\nAddress: <code>%s</code>\nBalance: <b>%s %s</b>",
		sess.Wallet.PublicKey, s.balanceLabel(ctx, network, sess.Wallet.PublicKey), network.Symbol)
	keyboard := [][]Button{
		s.chainRow(network.ID, PageWallet),
		{{Label: "👤 Account", Data: "back@" + PageAccount}},
		{{Label: "⬅ Back", Data: "back@" + PageStart}},
	}
	return text, keyboard
}

func (s *Service) accountPage(ctx context.Context, chatID int64) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)

	if sess.Wallet == nil {
		return s.walletPage(ctx, chatID)
	}

	text := fmt.Sprintf("<b>Account</b>\n\nAddress: <code>%s</code>\nBalance: <b>%s %s</b>",
		sess.Wallet.PublicKey, s.balanceLabel(ctx, network, sess.Wallet.PublicKey), network.Symbol)
	keyboard := [][]Button{
		s.chainRow(network.ID, PageAccount),
		{{Label: "🔑 Reveal private key", Data: "reveal"}},
		{{Label: "🔌 Disconnect", Data: "disconnect"}},
		{{Label: "⬅ Back", Data: "back@" + PageStart}},
	}
	return text, keyboard
}

func (s *Service) deployPage(chatID int64) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)
	draft := sess.Draft

	var b strings.Builder
	b.WriteString("<b>Deploy Token</b>\n\n")
	fmt.Fprintf(&b, "Symbol: %s\n", draftValue(draft.Symbol))
	fmt.Fprintf(&b, "Name: %s\n", draftValue(draft.Name))
	if draft.Supply > 0 {
		fmt.Fprintf(&b, "Supply: %d\n", draft.Supply)
	} else {
		b.WriteString("Supply: —\n")
	}
	fmt.Fprintf(&b, "Transfer tax: %.2f%%\n", draft.TaxPercent)
	fmt.Fprintf(&b, "Description: %s\n", draftValue(draft.Description))
	fmt.Fprintf(&b, "Logo: %s\n", draftValue(draft.LogoRef))
	fmt.Fprintf(&b, "\nDeploying costs a deposit of at least <b>%.2f %s</b>.",
		network.DepositLimitSOL, network.Symbol)

	keyboard := [][]Button{
		s.chainRow(network.ID, PageDeploy),
		{
			{Label: "Symbol", Data: inputData(session.FieldSymbol, PageDeploy)},
			{Label: "Name", Data: inputData(session.FieldName, PageDeploy)},
		},
		{
			{Label: "Supply", Data: inputData(session.FieldSupply, PageDeploy)},
			{Label: "Tax %", Data: inputData(session.FieldTaxes, PageDeploy)},
		},
		{
			{Label: "Description", Data: inputData(session.FieldDescription, PageDeploy)},
			{Label: "Logo", Data: inputData(session.FieldLogo, PageDeploy)},
		},
		{{Label: "🚀 Deploy", Data: "confirm@deploy"}},
		{
			{Label: "♻ Reset", Data: "reset"},
			{Label: "⬅ Back", Data: "back@" + PageStart},
		},
	}
	return b.String(), keyboard
}

func (s *Service) listPage(chatID int64) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)

	if sess.Wallet == nil {
		return "<b>My Tokens</b>\n\nConnect a wallet to see your tokens.", [][]Button{
			{{Label: "💳 Wallet", Data: "back@" + PageWallet}},
			{{Label: "⬅ Back", Data: "back@" + PageStart}},
		}
	}

	tokens, err := s.ledger.List(chatID, network.ID, sess.Wallet.PublicKey.String())
	if err != nil {
		s.logger.Error("Failed to list tokens", zap.Int64("chat_id", chatID), zap.Error(err))
	}

	keyboard := [][]Button{s.chainRow(network.ID, PageList)}
	text := fmt.Sprintf("<b>My Tokens</b> on %s\n", network.Name)
	if len(tokens) == 0 {
		text += "\nNothing deployed here yet."
	}
	for _, t := range tokens {
		label := t.Symbol
		if label == "" {
			label = shortAddress(t.Address)
		}
		keyboard = append(keyboard, []Button{{Label: label, Data: "token@" + t.Address}})
	}
	keyboard = append(keyboard, []Button{{Label: "⬅ Back", Data: "back@" + PageStart}})
	return text, keyboard
}

func (s *Service) tokenPage(ctx context.Context, chatID int64, address string) (string, [][]Button) {
	sess := s.sessions.Get(chatID)
	network := s.network(sess)

	token, err := s.ledger.Find(chatID, network.ID, address)
	if err != nil {
		return fmt.Sprintf("Token <code>%s</code> is not recorded on %s.", address, network.Name), [][]Button{
			{{Label: "⬅ Back", Data: "back@" + PageList}},
		}
	}

	var withheld uint64
	mint, err := solana.PublicKeyFromBase58(address)
	if err == nil {
		if report, scanErr := s.feesFor(network).ScanWithheld(ctx, mint); scanErr == nil {
			withheld = report.Total
		} else {
			s.logger.Warn("Withheld fee scan failed", zap.String("mint", address), zap.Error(scanErr))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s (%s)</b>\n\n", token.Name, token.Symbol)
	fmt.Fprintf(&b, "Address: <code>%s</code>\n", token.Address)
	fmt.Fprintf(&b, "Supply: %d\n", token.Supply)
	fmt.Fprintf(&b, "Transfer tax: %.2f%%\n", token.TaxPercent)
	if token.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", token.Description)
	}
	fmt.Fprintf(&b, "\nWithheld fees: <b>%s %s</b>",
		formatBaseUnits(withheld), token.Symbol)

	keyboard := [][]Button{
		{{Label: "🔄 Refresh", Data: "refresh@" + address}},
	}
	if withheld > 0 {
		keyboard = append(keyboard, []Button{{Label: "💰 Withdraw fees", Data: "withdraw@" + address}})
	}
	keyboard = append(keyboard, []Button{{Label: "⬅ Back", Data: "back@" + PageList}})
	return b.String(), keyboard
}

func (s *Service) balanceLabel(ctx context.Context, network config.Network, pubkey solana.PublicKey) string {
	balance, err := s.clientFor(network).GetBalance(ctx, pubkey)
	if err != nil {
		s.logger.Warn("Balance lookup failed", zap.String("address", pubkey.String()), zap.Error(err))
		return "?"
	}
	return formatSOL(balance)
}

func inputData(field session.Field, returnPage string) string {
	return fmt.Sprintf("input@%s#%s", field, returnPage)
}

func draftValue(v string) string {
	if v == "" {
		return "—"
	}
	return v
}

func shortAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}

func formatSOL(lamports uint64) string {
	return fmt.Sprintf("%.4f", float64(lamports)/blockchain.LamportsPerSOL)
}

// formatBaseUnits renders a 9-decimals token amount.
func formatBaseUnits(units uint64) string {
	return fmt.Sprintf("%.4f", float64(units)/1e9)
}
