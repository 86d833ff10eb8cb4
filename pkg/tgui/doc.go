// Package tgui provides small Telegram UI helpers:
//   - Inline keyboard builders (transport.Keyboard)
//   - Callback data helpers (scope:action:payload)
//   - HTML-safe message text builder
package tgui
