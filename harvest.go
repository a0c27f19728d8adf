// Package harvest discovers downloadable resources reachable from seed pages
// and saves them to local storage. A depth-bounded, concurrent breadth-first
// crawl collects resource URLs matching a selector; a collision-aware writer
// streams each resource to disk.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., goquery/, sqlite/, rod/).
package harvest
