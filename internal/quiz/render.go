package quiz

import (
	"fmt"
	"strconv"

	kit "quizbot/internal/transport"
	"quizbot/pkg/tgui"
)

func modeTitle(m Mode) string {
	switch m {
	case ModeAvatar:
		return "Guess the avatar"
	case ModeArt:
		return "Guess the artist"
	}
	return string(m)
}

func menuMessage(cb Callbacks) (string, *kit.SendOptions) {
	kb := tgui.NewInline().
		Row(tgui.Btn("🖼 "+modeTitle(ModeAvatar), cb.Mode(ModeAvatar))).
		Row(tgui.Btn("🎨 "+modeTitle(ModeArt), cb.Mode(ModeArt)))
	return tgui.New().Title("🎮", "Choose a game").Inline(kb).Build()
}

func roundCountMessage(cb Callbacks, m Mode, options []int) (string, *kit.SendOptions) {
	total := options[len(options)-1]
	btns := make([]kit.Button, 0, len(options))
	for _, n := range options[:len(options)-1] {
		btns = append(btns, tgui.Btn(strconv.Itoa(n), cb.Rounds(n)))
	}
	btns = append(btns, tgui.Btn(fmt.Sprintf("All (%d)", total), cb.Rounds(total)))
	filler := tgui.Btn(" ", cb.Noop())
	kb := tgui.NewInline().Grid(2, btns, &filler)
	return tgui.New().
		Title("🎮", modeTitle(m)).
		Text(fmt.Sprintf("Known entities: %d. How many rounds?", total)).
		Inline(kb).
		Build()
}

func batchSizeMessage(cb Callbacks) (string, *kit.SendOptions) {
	kb := tgui.NewInline().
		Row(tgui.Btn("1", cb.Batch(1)), tgui.Btn("2", cb.Batch(2))).
		Row(tgui.Btn("3", cb.Batch(3)), tgui.Btn("All", cb.Batch(BatchAll)))
	return tgui.New().
		Text("How many artworks per artist? Fewer is harder. \"All\" sends every artwork of the artist.").
		Inline(kb).
		Build()
}

func batchLabel(size int) string {
	if size == BatchAll {
		return "all available artworks"
	}
	return strconv.Itoa(size) + " artwork(s) per artist"
}

func avatarCaption(r Round) string {
	return fmt.Sprintf("Round %d/%d. Pick the avatar of: <b>%s</b>", r.Number, r.Total, tgui.Esc(r.Label))
}

func avatarKeyboard(cb Callbacks, r Round) *kit.Keyboard {
	btns := make([]kit.Button, 0, len(r.Choices))
	for i := range r.Choices {
		btns = append(btns, tgui.Btn(strconv.Itoa(i+1), cb.Answer(r.Token, i+1)))
	}
	return tgui.NewInline().Row(btns...).Keyboard()
}

func artPrompt(cb Callbacks, ix *Index, r Round) (string, *kit.SendOptions) {
	kb := tgui.NewInline()
	for i, id := range r.Choices {
		kb.Row(tgui.Btn(tgui.TruncRunes(ix.Label(id), 48), cb.Answer(r.Token, i+1)))
	}
	return tgui.New().
		Text(fmt.Sprintf("Round %d/%d. Who made these?", r.Number, r.Total)).
		Inline(kb).
		Build()
}

func outcomeText(res Result) string {
	if res.Correct {
		return "🎉 Correct! It was " + res.Label
	}
	return "❌ Wrong! The answer was " + res.Label
}

func progressText(res Result) string {
	return fmt.Sprintf("Passed: %d. Correct: %d. Left: %d", res.Round, res.Score, res.Remaining)
}

func summaryMessage(cb Callbacks, s *Session) (string, *kit.SendOptions) {
	b := tgui.New().
		Title("🏁", "Game over!").
		KV("Your score", fmt.Sprintf("%d of %d", s.Score, s.TotalRounds))
	if s.Mode.MultiAsset() {
		b.KV("Shown", batchLabel(s.BatchSize))
	}
	kb := tgui.NewInline().Row(
		tgui.Btn("🔁 Play again", cb.Mode(s.Mode)),
		tgui.Btn("Choose another game", cb.Menu()),
	)
	return b.Inline(kb).Build()
}

func itoa(n int) string { return strconv.Itoa(n) }
