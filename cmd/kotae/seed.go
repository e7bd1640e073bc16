package main

import "github.com/kaiteki-lab/kotae/core"

// Sample bilingual corpus for local development and demos.
var seedDocuments = []*core.Document{
	{
		ID:       "doc-budget-ja",
		Title:    "予算変更ガイド",
		Category: "billing",
		Language: core.LanguageJapanese,
		Format:   "md",
		Content: "予算の変更は管理画面から行います。手順は次のとおりです。\n" +
			"1. 管理画面を開く\n" +
			"2. 予算タブを選択する\n" +
			"3. 新しい金額を入力して保存する\n" +
			"予算変更の申請は部門長の承認が必要です。承認後、翌営業日に反映されます。",
	},
	{
		ID:       "doc-budget-en",
		Title:    "Budget Change Guide",
		Category: "billing",
		Language: core.LanguageEnglish,
		Format:   "md",
		Content: "Budget changes are made from the admin console. Follow these steps.\n" +
			"1. Open the admin console\n" +
			"2. Select the budget tab\n" +
			"3. Enter the new amount and save\n" +
			"You need to obtain approval from your department head before the change takes effect.",
	},
	{
		ID:       "doc-vacation-ja",
		Title:    "休暇申請の手順",
		Category: "hr",
		Language: core.LanguageJapanese,
		Format:   "md",
		Content: "休暇の申請は前日までに上長へ提出してください。\n" +
			"緊急の場合は電話で連絡する必要があります。\n" +
			"年次休暇の残日数は人事システムで確認しましょう。",
	},
	{
		ID:       "doc-vacation-en",
		Title:    "Vacation Request Procedure",
		Category: "hr",
		Language: core.LanguageEnglish,
		Format:   "md",
		Content: "Please submit vacation requests to your manager by the previous day.\n" +
			"In urgent cases you must call instead.\n" +
			"You should check your remaining annual leave in the HR system.",
	},
	{
		ID:       "doc-login-ja",
		Title:    "ログインできない場合",
		Category: "troubleshooting",
		Language: core.LanguageJapanese,
		Format:   "md",
		Content: "ログインエラーが発生した場合の対処方法です。\n" +
			"1. パスワードをリセットする\n" +
			"2. ブラウザのキャッシュを削除する\n" +
			"3. 解決しない場合はサポートへ連絡してください。",
	},
}

var seedTemplates = []*core.Template{
	{
		ID:       "tpl-standard-ja",
		Name:     "標準回答",
		Type:     core.ResponseStandard,
		Language: core.LanguageJapanese,
		Content: "「{query}」についてお答えします。\n\n" +
			"{if exists context.snippets}{for snippet in context.snippets}{snippet.title}: {snippet.text}\n{endfor}{endif}" +
			"{if exists context.procedures}\n手順:\n{for step in context.procedures}{index}. {step.title}\n{endfor}{endif}",
	},
	{
		ID:       "tpl-standard-en",
		Name:     "Standard Answer",
		Type:     core.ResponseStandard,
		Language: core.LanguageEnglish,
		Content: "Here is what we found for \"{query}\".\n\n" +
			"{if exists context.snippets}{for snippet in context.snippets}{snippet.title}: {snippet.text}\n{endfor}{endif}",
	},
	{
		ID:       "tpl-email-urgent-ja",
		Name:     "至急メール",
		Type:     core.ResponseEmail,
		Language: core.LanguageJapanese,
		Metadata: map[string]any{"urgency": "urgent", "complexity": "simple"},
		Content: "件名: 【至急】{query}について\n\n" +
			"お問い合わせいただいた件についてご案内します。\n" +
			"{if exists context.snippets}{for snippet in context.snippets}- {snippet.text}\n{endfor}{endif}\n" +
			"ご不明な点がございましたらご連絡ください。",
	},
}

var seedHelpPairs = []*core.HelpPair{
	{
		ID:           "pair-budget",
		Topic:        "budget-change",
		JaDocumentID: "doc-budget-ja",
		EnDocumentID: "doc-budget-en",
	},
	{
		ID:           "pair-vacation",
		Topic:        "vacation-request",
		JaDocumentID: "doc-vacation-ja",
		EnDocumentID: "doc-vacation-en",
	},
}
