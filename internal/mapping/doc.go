// Package mapping provides the rule-file schema, YAML and TOML parsing,
// validation against registered types, and the conversion of rule files into
// plan rules.
//
// Rule files pin what automatic matching cannot guess: configured sources,
// ignored members, identity keys of collection elements, derived type pairs
// and factories.
//
// # Schema Overview
//
//	version: "1"
//	settings:
//	  strict: true
//	  categories: [safe_number, text_number]
//	  identity_names: [ID, Code]
//	mappings:
//	  - source: store.Order
//	    target: warehouse.Order
//	    # 1:1 shorthand, source member -> target member (highest priority)
//	    121:
//	      OrderID: ID
//	    # full member mappings
//	    fields:
//	      - target: Status
//	        default: "pending"
//	      - target: [DisplayName, FullName]  # 1:many
//	        source: Name
//	      - target: Address                  # many:1 (requires transform)
//	        source: [Street, City]
//	        transform: ConcatAddress
//	    ignore:
//	      - InternalField
//	    # identity member of collection elements of both types
//	    identify: ID
//	    # concrete pairs for members of interface type
//	    derived:
//	      - source: store.Card
//	        target: warehouse.Card
//	    # factory taking sourced parameters
//	    create:
//	      func: NewOrder
//	      params: [ID, Customer]
//	    # lowest priority, typically written back by tools
//	    auto:
//	      - target: Amount
//	        source: Price
//	transforms:
//	  - name: ConcatAddress
//	    source_type: string
//	    target_type: string
//
// The same schema is accepted in TOML, with the 1:1 shorthand under
// the "121" table.
//
// # Priority Order
//
// Configured sources are tried in this order:
//  1. "121" shorthand mappings (highest)
//  2. "fields" mappings
//  3. fluent configuration in code
//  4. "auto" mappings
//  5. automatic matching by name (lowest)
//
// Ignored members are never mapped, whatever their other sources are.
//
// # Paths
//
// Source and target paths are dotted member names ("Customer.Address.City").
// Path segments match members case-insensitively; below a string-keyed map
// they name dictionary entries. Collection elements are not addressed by
// paths: configure the element type pair instead.
package mapping
