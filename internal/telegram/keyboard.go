package telegram

import (
	"github.com/go-telegram/bot/models"
)

const menuPrefix = "menu:"

const (
	actionSupport  = "support"
	actionWallet   = "wallet"
	actionAccounts = "accounts"
	actionTasks    = "tasks"
	actionSettings = "settings"
	actionReferral = "referral"
)

func inlineButton(text, data string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: data}
}

func buttonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

func inlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func mainMenu() *models.InlineKeyboardMarkup {
	return inlineKeyboard(
		buttonRow(
			inlineButton("📞 Support", menuPrefix+actionSupport),
			inlineButton("💰 Wallet", menuPrefix+actionWallet),
		),
		buttonRow(
			inlineButton("🗂 My Accounts", menuPrefix+actionAccounts),
			inlineButton("📋 Tasks", menuPrefix+actionTasks),
		),
		buttonRow(
			inlineButton("⚙️ Settings", menuPrefix+actionSettings),
			inlineButton("👥 Referral", menuPrefix+actionReferral),
		),
	)
}
