package flow

import (
	"fmt"
	"strings"
)

// CancelKeyword ends a session at any step. Matching ignores case.
const CancelKeyword = "quit"

const (
	msgWelcome          = "Welcome to the sticker generator!"
	msgChoosePack       = "Choose a sticker pack:"
	msgEnterPack        = "Enter the pack name:"
	msgChooseCharacter  = "Choose a character:"
	msgEnterCharacter   = "Enter the character name:"
	msgChooseStyle      = "Choose a style (enter a number):"
	msgPackNotFound     = "Sticker pack not found, please try again:"
	msgCharNotFound     = "Character not found, please try again:"
	msgNotNumber        = "Please enter a valid number:"
	msgOutOfRange       = "Please enter a number between 1-%d:"
	msgEnterText        = "Enter the text to display:"
	msgDone             = "Sticker ready! Send /sticker to make another one."
	msgGenerationFailed = "Image generation failed, please try again. Send /sticker to start over."
	msgDownloadFailed   = "Image download failed: %v\nSend /sticker to start over."
	msgGeneric          = "Something went wrong, please start over."
	// MsgCancelled is sent when a session is cancelled.
	MsgCancelled = "Sticker session cancelled."
)

func bulletList(header string, items []string, footer string) string {
	var b strings.Builder
	b.WriteString(header)
	for _, it := range items {
		b.WriteString("\n- ")
		b.WriteString(it)
	}
	if footer != "" {
		b.WriteString("\n")
		b.WriteString(footer)
	}
	return b.String()
}

func styleList(count int) string {
	var b strings.Builder
	b.WriteString(msgChooseStyle)
	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, "\n%d. Style %d", i, i)
	}
	return b.String()
}

func styleChoices(count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprint(i + 1)
	}
	return out
}
