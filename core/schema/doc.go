/*
Package schema defines database profiles: the record template of each
database kind and the rules that go with it.

A profile is declared in YAML. The built-in item and mob profiles are
embedded; further profiles can be loaded from a directory.

	profile: item
	type: ITEM_DB
	default_id: 501
	new_aegis_name: NEW_ITEM_%d
	new_name: New Item

	fields:
	  - { name: Id,     kind: integer, default: 0, retain: true }
	  - { name: Jobs,   kind: flatmap, default: { All: true } }
	  - { name: Script, kind: multiline }

# Field Kinds

  - integer:   non-negative integer, non-digit input saves as 0
  - boolean:   "true" (any case) is true, anything else false
  - text:      single line, empty or "None" saves as null
  - multiline: script block, empty saves as null
  - flatmap:   nested mapping edited as "key: value" lines
  - pairlist:  drop table of {Item, Rate} entries

# Clean Rules

Saved records drop null values and empty mappings unless the field has
retain set. Profiles with drop_defaults also drop values equal to the
template default, and fields with drop_if_empty are dropped whenever they
are empty.

# Constraints

A field may list constraints (min, max, max_length, pattern, one_of).
Validation reports broken constraints as warnings; the values are still
loaded and saved as they are.

	  - { name: Slots, kind: integer, default: 0,
	      constraints: [{ type: max, value: 4 }] }
*/
package schema
