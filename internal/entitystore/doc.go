/*
Package entitystore provides a thread-safe arena of top-level entities.

The reflection layer never owns instance data. Every Ptr it hands out
carries a weak OwnerRef naming the top-level entity the data lives in, and
this package is the data model those references point into.

# Handles and generations

Each entity occupies a slot identified by a Handle{Index, Gen}. Removing an
entity bumps the slot's generation and puts it on a free list, so a Ptr
built before the removal keeps its old generation and is reported as stale
by rtti.Ptr.Check instead of silently aliasing whatever reuses the slot.
The zero Handle is never alive.

# Identifiers

Entities are also addressable by a stable string ID. IDs default to random
UUIDs and are what change notifications carry in Event.OwnerID.
*/
package entitystore
