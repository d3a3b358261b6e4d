package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestEveryCommandHasAHandler(t *testing.T) {
	b := &Bot{}
	handlers := b.commandHandlers()
	for _, cmd := range commandDefinitions(true) {
		if _, ok := handlers[cmd.Name]; !ok {
			t.Errorf("command %q has no handler", cmd.Name)
		}
	}
}

func TestLoginCommandOnlyWithOAuth(t *testing.T) {
	for _, cmd := range commandDefinitions(false) {
		if cmd.Name == "login" {
			t.Fatal("login registered without a configured sign-in flow")
		}
	}
	found := false
	for _, cmd := range commandDefinitions(true) {
		if cmd.Name == "login" {
			found = true
		}
	}
	if !found {
		t.Fatal("login missing with a configured sign-in flow")
	}
}

func TestAdminCommandsRequireManageServer(t *testing.T) {
	want := map[string]bool{
		"blacklist": true,
		"config":    true,
		"logs":      true,
		"syncall":   true,
	}
	for _, cmd := range commandDefinitions(false) {
		if !want[cmd.Name] {
			continue
		}
		if cmd.DefaultMemberPermissions == nil || *cmd.DefaultMemberPermissions != manageGuild {
			t.Errorf("command %q must default to the Manage Server permission", cmd.Name)
		}
		delete(want, cmd.Name)
	}
	for name := range want {
		t.Errorf("command %q is not defined", name)
	}
}

func TestUpdateCommandHasGroupFilter(t *testing.T) {
	for _, cmd := range commandDefinitions(false) {
		if cmd.Name != "update" {
			continue
		}
		for _, opt := range cmd.Options {
			if opt.Name == "group" && opt.Type == discordgo.ApplicationCommandOptionInteger && !opt.Required {
				return
			}
		}
		t.Fatal("update lacks an optional group option")
	}
	t.Fatal("update command is not defined")
}
