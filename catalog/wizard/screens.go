package wizard

import (
	"strings"

	"github.com/m3rciful/facetbot/catalog/pager"
	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/session"
	"github.com/m3rciful/facetbot/catalog/steps"
)

func withNotice(notice, text string) string {
	if notice == "" {
		return text
	}
	return notice + "\n\n" + text
}

func (c *Controller) nav() []session.Option {
	return []session.Option{
		{Text: c.opts.Texts.Back, Token: TokenBack},
		{Text: c.opts.Texts.Start, Token: TokenStart},
	}
}

func (c *Controller) greetingScreen(notice string) session.Screen {
	return session.Screen{
		Text: withNotice(notice, c.opts.Texts.Greeting),
		Options: []session.Option{
			{Text: c.opts.Texts.AboutButton, Token: TokenAbout},
			{Text: c.opts.Texts.BeginButton, Token: TokenBegin},
		},
	}
}

func (c *Controller) aboutScreen() session.Screen {
	return session.Screen{Text: c.opts.Texts.About, Nav: c.nav()}
}

// stepScreen lays out the current page of st. An empty element list yields the
// "no data" screen with navigation only.
func (c *Controller) stepScreen(s *session.Session, st steps.Step, notice string) session.Screen {
	if len(s.Elements) == 0 {
		return session.Screen{Text: withNotice(notice, c.opts.Texts.NoData), Nav: c.nav()}
	}

	p := pager.Slice(s.Elements, s.Pager.Index, c.opts.PageSize)
	opts := make([]session.Option, 0, len(p.Items))
	for _, r := range p.Items {
		o := session.Option{Text: r.Label}
		key := ValueKey(st.Key, r.Value)
		if st.MultiSelect {
			o.Token = ToggleToken(st.Key, key)
			if s.Selections.Has(st.Position, r.Value) {
				o.Selected = true
				o.Text = c.opts.Texts.Selected + r.Label
			}
		} else {
			o.Token = SelectToken(st.Key, key)
		}
		opts = append(opts, o)
	}

	screen := session.Screen{
		Text:    withNotice(notice, st.Prompt),
		Options: opts,
		Pager:   p.Controls(),
		Nav:     c.nav(),
	}
	if st.MultiSelect {
		screen.Actions = []session.Option{{Text: c.opts.Texts.Commit, Token: TokenCommit}}
	}
	return screen
}

func (c *Controller) detail(r query.Row) Detail {
	var b strings.Builder
	b.WriteString(c.opts.Texts.DetailName)
	b.WriteString(": ")
	b.WriteString(r.Label)
	if r.Description != "" {
		b.WriteString("\n")
		b.WriteString(c.opts.Texts.DetailDesc)
		b.WriteString(": ")
		b.WriteString(r.Description)
	}
	return Detail{
		ID:          r.ID,
		Label:       r.Label,
		Description: r.Description,
		DocURL:      r.DocURL,
		ImageURL:    r.ImageURL,
		Caption:     b.String(),
		DocButton:   c.opts.Texts.DetailDoc,
	}
}
