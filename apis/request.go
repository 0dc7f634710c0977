// Package apis accepts display requests from outside the process: a
// websocket remote control with an image upload endpoint, and a server-sent
// events notification feed.
package apis

import "image"

// Request asks the display to show something. Exactly one of Text and Image
// is normally set; Brightness may accompany either or stand alone.
type Request struct {
	Text       string      `json:"text,omitempty"`
	Brightness *int        `json:"brightness,omitempty"`
	Info       bool        `json:"info,omitempty"`
	Image      image.Image `json:"-"`
}

func (r Request) empty() bool {
	return r.Text == "" && r.Brightness == nil && !r.Info && r.Image == nil
}
