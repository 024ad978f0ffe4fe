// Package cycle keeps the cross-run state of a repeated harvesting process.
//
// A Store holds one in-memory Document: global cycle attributes (the overview)
// plus an ordered collection of endpoint records, each identified by the pair
// (URI, group). Clients read and mutate that state through views:
//
//	store, err := cycle.Open("overview.json")
//	if err != nil {
//		return err // LoadError or IntegrityError
//	}
//	ep, err := store.GetEndpoint("http://example.org/oai", "clarin")
//	if err != nil {
//		return err // InvalidArgument
//	}
//	ep.DoneHarvesting(true, time.Now())
//	return store.Save(ctx) // PersistError on failure
//
// GetEndpoint creates a record with zero state the first time a pair is asked
// for. Views point into the Document, so every mutation is picked up by the
// next Save. Saves are mutually exclusive and replace the file atomically;
// field accessors are not synchronized.
package cycle
