package client

// HistoryUp recalls the previous history entry, saving the in-progress
// edit line the first time it's invoked so Down can return to it.
func (c *Client) HistoryUp() {
	if len(c.History) == 0 {
		return
	}
	if c.HistIdx == -1 {
		c.Saved = c.Edit.Clone()
		c.HistIdx = len(c.History) - 1
	} else if c.HistIdx > 0 {
		c.HistIdx--
	} else {
		return
	}
	c.Edit.Load([]byte(c.History[c.HistIdx]))
}

// HistoryDown recalls the next history entry, or restores the saved
// in-progress line once history is exhausted.
func (c *Client) HistoryDown() {
	if c.HistIdx == -1 {
		return
	}
	if c.HistIdx < len(c.History)-1 {
		c.HistIdx++
		c.Edit.Load([]byte(c.History[c.HistIdx]))
	} else {
		c.HistIdx = -1
		c.Edit.Load(c.Saved)
		c.Saved = nil
	}
}

// PushHistory records a committed line, recycling the trailing empty
// slot if the last entry was blank (spec §4.C7: "recycle empty tail
// history slot").
func (c *Client) PushHistory(entry string) {
	if entry == "" {
		return
	}
	if n := len(c.History); n > 0 && c.History[n-1] == "" {
		c.History[n-1] = entry
		return
	}
	c.History = append(c.History, entry)
}
