// Package storage persists the notification center's attributes.
//
// It holds:
//   - The pending alarm (title, text, attempt) so an unconfirmed alarm
//     survives a restart
//   - An append-only delivery log (one record per delivery attempt)
package storage
