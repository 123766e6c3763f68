package jobs

import "github.com/autoguard/cloak/internal/domain"

// defaultTemplates are the built-in prompt fallbacks used when a
// safe-page-<type> prompt has no active version in the Authoritative
// Store, per spec.md §6's "DB → default embedded template fallback".
var defaultTemplates = map[domain.SafePageType]string{
	domain.SafeReview: `Write a balanced, editorial-style review article about {{product_name}} ({{product_url}}).
{{#competitors}}Mention how it compares to alternatives such as {{competitors}}, without disparaging them.{{/competitors}}
Keep the tone neutral and informative, as if written for a consumer review blog.
{{#affiliate_link}}Close with a brief recommendation and a call to action: "{{cta_button}}" linking to {{affiliate_link}}.{{/affiliate_link}}
Return only the article body wrapped in a single <article>...</article> element.`,

	domain.SafeTips: `Write a practical tips-and-advice article related to the general category of {{product_name}}.
Do not mention {{product_name}} by brand name more than once.
{{#competitors}}You may reference the broader landscape, including {{competitors}}, in passing.{{/competitors}}
{{#affiliate_link}}End with a soft call to action: "{{cta_button}}" linking to {{affiliate_link}}.{{/affiliate_link}}
Return only the article body wrapped in a single <article>...</article> element.`,

	domain.SafeComparison: `Write an even-handed comparison article surveying {{product_name}} against {{competitors}}.
Present pros and cons for each option without favoring one outright.
{{#affiliate_link}}Conclude with a neutral call to action: "{{cta_button}}" linking to {{affiliate_link}}.{{/affiliate_link}}
Return only the article body wrapped in a single <article>...</article> element.`,

	domain.SafeGuide: `Write an educational how-to guide on the general topic area of {{product_name}} ({{product_url}}).
Keep it informational and avoid overt promotion.
{{#competitors}}Alternatives in this space include {{competitors}}.{{/competitors}}
{{#affiliate_link}}Close with: "{{cta_button}}" linking to {{affiliate_link}}.{{/affiliate_link}}
Return only the article body wrapped in a single <article>...</article> element.`,
}

const pageShell = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>%s</title>
<meta name="viewport" content="width=device-width, initial-scale=1">
<style>
body{font-family:Georgia,serif;max-width:680px;margin:2rem auto;padding:0 1rem;line-height:1.6;color:#222}
h1,h2{font-family:Arial,sans-serif}
.cta{display:inline-block;margin-top:1.5rem;padding:.75rem 1.5rem;background:#2c6e49;color:#fff;text-decoration:none;border-radius:4px}
</style>
</head>
<body>
%s
%s
</body>
</html>`
