// Package event defines the typed events a client records during a stage.
//
// Events form a closed sum type: every concrete type in this package
// implements Event, and no type outside it can. Consumers dispatch with a type
// switch over the concrete variants.
//
// Events are values. They are built once, by a decoder or a test fixture, and
// are never changed afterwards. Operations that would alter an event, such as
// renumbering its ticks, return a new value instead. Slice fields are shared
// between copies and must be treated as read-only.
//
// # Tick Renumbering
//
// Several events refer to other ticks: a player's off-cooldown tick, the tick
// of the attack a bounce or style change belongs to, a Xarpus exhume's spawn
// and heal ticks. Whenever ticks are renumbered, all of these move together
// with the event's own tick. A TickMap describes the renumbering as a total
// function and Retick applies it to every tick-bearing field at once.
package event
