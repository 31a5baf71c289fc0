package searchidx

import "strings"

// LabelSeparator joins the account-level and guild-level names inside the
// composite label. U+001F cannot be typed in a display name (it is stripped
// from inputs), so a query can never match across the two-name boundary.
const LabelSeparator = "\x1f"

// Token is one indexable word from the normalized label, with its
// precomputed prefixes. Prefix3/Prefix4 are empty for shorter tokens.
type Token struct {
	Text    string
	Prefix2 string
	Prefix3 string
	Prefix4 string
}

// Doc is the full derived search document for one (guild, member) pair.
type Doc struct {
	AccountName *string
	GuildName   *string
	AccountNorm string
	GuildNorm   string
	Label       string
	LabelNorm   string
	Tokens      []Token
}

// BuildDoc derives the search document from the last-known names of a pair.
// When both names are empty the member id itself becomes the label so the
// pair stays findable.
func BuildDoc(memberID string, accountName, guildName *string) Doc {
	account := sanitize(accountName)
	guild := sanitize(guildName)

	label := account + LabelSeparator + guild
	if account == "" && guild == "" {
		label = memberID
	}

	d := Doc{
		AccountName: accountName,
		GuildName:   guildName,
		AccountNorm: Normalize(account),
		GuildNorm:   Normalize(guild),
		Label:       label,
		LabelNorm:   Normalize(label),
	}
	for _, t := range Tokenize(d.LabelNorm) {
		d.Tokens = append(d.Tokens, Token{
			Text:    t,
			Prefix2: runePrefix(t, 2),
			Prefix3: runePrefix(t, 3),
			Prefix4: runePrefix(t, 4),
		})
	}
	return d
}

func sanitize(name *string) string {
	if name == nil {
		return ""
	}
	return strings.ReplaceAll(*name, LabelSeparator, " ")
}
