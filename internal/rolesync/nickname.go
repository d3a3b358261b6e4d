package rolesync

import "strings"

// Discord caps nicknames at 32 characters.
const maxNicknameLength = 32

// TemplateFields are the values substituted into a nickname template.
type TemplateFields struct {
	RobloxUsername string
	DisplayName    string
	DiscordName    string
	RankName       string
}

var placeholderAliases = map[string][]string{
	"{roblox-username}": {"{roblox-username}", "{roblox}"},
	"{display-name}":    {"{display-name}", "{display}"},
	"{discord-name}":    {"{discord-name}", "{discord}"},
	"{rank-name}":       {"{rank-name}", "{rank}"},
}

// ResolveTemplate substitutes placeholders case-insensitively and truncates
// the result to the platform limit. Legacy short placeholder forms stay
// supported so old bindings keep working.
func ResolveTemplate(template string, fields TemplateFields) string {
	out := template
	values := map[string]string{
		"{roblox-username}": fields.RobloxUsername,
		"{display-name}":    fields.DisplayName,
		"{discord-name}":    fields.DiscordName,
		"{rank-name}":       fields.RankName,
	}
	for canonical, aliases := range placeholderAliases {
		for _, alias := range aliases {
			out = replaceInsensitive(out, alias, values[canonical])
		}
	}
	// Truncation counts runes so a multi-byte display name never gets cut
	// mid-character.
	if runes := []rune(out); len(runes) > maxNicknameLength {
		out = string(runes[:maxNicknameLength])
	}
	return out
}

// ResolveNickname picks the highest-ranked matched binding that carries a
// template. The winning binding also supplies the rank name, so two bound
// groups never swap names in the nickname. Matched must already be sorted;
// an empty return means no binding wants to manage the nickname.
func ResolveNickname(matched []Matched, fields TemplateFields) string {
	for _, m := range matched {
		if m.Template == "" {
			continue
		}
		f := fields
		f.RankName = m.RankName
		return ResolveTemplate(m.Template, f)
	}
	return ""
}

func replaceInsensitive(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	oldLower := strings.ToLower(old)
	var b strings.Builder
	for {
		i := strings.Index(lower, oldLower)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(old):]
	}
}
