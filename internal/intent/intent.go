// Package intent defines the Gateway intent bitmask sent with Identify.
// See: https://discord.com/developers/docs/topics/gateway#gateway-intents
package intent

// Intent is a single gateway intent bit. Intents combine with Mask.
type Intent uint16

const (
	Guilds                 Intent = 1 << 0
	GuildMembers           Intent = 1 << 1
	GuildBans              Intent = 1 << 2
	GuildEmojis            Intent = 1 << 3
	GuildIntegrations      Intent = 1 << 4
	GuildWebhooks          Intent = 1 << 5
	GuildInvites           Intent = 1 << 6
	GuildVoiceStates       Intent = 1 << 7
	GuildPresences         Intent = 1 << 8
	GuildMessages          Intent = 1 << 9
	GuildMessageReactions  Intent = 1 << 10
	GuildMessageTyping     Intent = 1 << 11
	DirectMessages         Intent = 1 << 12
	DirectMessageReactions Intent = 1 << 13
	DirectMessageTyping    Intent = 1 << 14
)

const maxShift = 14

// All is the bitmask of every named intent.
const All Intent = (1 << (maxShift + 1)) - 1

// Privileged is the subset of All that Discord requires explicit
// application-level opt-in for.
const Privileged Intent = GuildPresences | GuildMembers

// Unprivileged is every intent that does not require opt-in, and is the
// client's default.
const Unprivileged Intent = All ^ Privileged

// Mask ORs a set of intents together into a single bitmask.
func Mask(intents ...Intent) Intent {
	var m Intent
	for _, i := range intents {
		m |= i
	}
	return m
}
