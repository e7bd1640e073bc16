package synth

import (
	"fmt"

	"github.com/kaiteki-lab/kotae/core"
)

// Built-in template skeletons, used when the catalog has no template for a
// response type. They only reference context paths every response context
// populates.

var builtinContentJA = map[core.ResponseType]string{
	core.ResponseStandard: `「{query}」の検索結果です。

{for s in context.snippets}{index}. {s.title}
{s.text}

{endfor}{if exists context.action_items}対応事項:
{format:list(context.action_items)}
{endif}`,

	core.ResponseEmail: `件名: {query} について

お世話になっております。

お問い合わせいただいた「{query}」について、以下の通りご案内いたします。

{for s in context.snippets}・{s.title}: {s.text}
{endfor}
{if exists context.procedures}手順:
{for p in context.procedures}{p.title}
{format:list(p.steps)}
{endfor}{endif}
ご不明な点がございましたらお知らせください。

よろしくお願いいたします。`,

	core.ResponsePrep: `# {query} - 準備メモ ({date})

## 要点
{format:list(context.topics)}

## 参考資料
{for s in context.snippets}- {s.title}: {s.text}
{endfor}
{if exists context.action_items}## 確認事項
{format:list(context.action_items)}
{endif}`,

	core.ResponseDetailed: `# {query}

## 概要
{for s in context.snippets}{s.text}

{endfor}{if exists context.procedures}## 手順
{for p in context.procedures}### {p.title}
{format:list(p.steps)}

{endfor}{endif}{if exists context.key_concepts}## 関連用語
{for c in context.key_concepts}- {c.name}: {c.description}
{endfor}{endif}
{if exists context.action_items}## 対応事項
{format:list(context.action_items)}
{endif}`,

	core.ResponseNoResults: `「{query}」に一致する結果は見つかりませんでした。

次のような言い換えをお試しください:
{format:list(context.related_queries)}
{if exists context.category_list}
検索できるカテゴリ: {format:list(context.category_list)}
{endif}`,
}

var builtinContentEN = map[core.ResponseType]string{
	core.ResponseStandard: `Search results for "{query}":

{for s in context.snippets}{index}. {s.title}
{s.text}

{endfor}{if exists context.action_items}Action items:
{format:list(context.action_items)}
{endif}`,

	core.ResponseEmail: `Subject: Regarding {query}

Hello,

Here is what we found regarding "{query}":

{for s in context.snippets}- {s.title}: {s.text}
{endfor}
{if exists context.procedures}Steps:
{for p in context.procedures}{p.title}
{format:list(p.steps)}
{endfor}{endif}
Please let us know if you have any further questions.

Best regards`,

	core.ResponsePrep: `# {query} - prep notes ({date})

## Key points
{format:list(context.topics)}

## References
{for s in context.snippets}- {s.title}: {s.text}
{endfor}
{if exists context.action_items}## To verify
{format:list(context.action_items)}
{endif}`,

	core.ResponseDetailed: `# {query}

## Overview
{for s in context.snippets}{s.text}

{endfor}{if exists context.procedures}## Procedures
{for p in context.procedures}### {p.title}
{format:list(p.steps)}

{endfor}{endif}{if exists context.key_concepts}## Key concepts
{for c in context.key_concepts}- {c.name}: {c.description}
{endfor}{endif}
{if exists context.action_items}## Action items
{format:list(context.action_items)}
{endif}`,

	core.ResponseNoResults: `No results were found for "{query}".

Try rephrasing your query, for example:
{format:list(context.related_queries)}
{if exists context.category_list}
Available categories: {format:list(context.category_list)}
{endif}`,
}

// builtinTemplate synthesizes the hardcoded default template for a response
// type and language.
func builtinTemplate(rt core.ResponseType, language core.Language) *core.Template {
	table := builtinContentEN
	if language == core.LanguageJapanese {
		table = builtinContentJA
	}
	content, ok := table[rt]
	if !ok {
		content = table[core.ResponseStandard]
	}
	return &core.Template{
		ID:       fmt.Sprintf("builtin-%s-%s", rt, language),
		Name:     fmt.Sprintf("Built-in %s template", rt),
		Type:     rt,
		Content:  content,
		Language: language,
	}
}
