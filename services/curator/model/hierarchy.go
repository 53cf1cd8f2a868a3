// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

// TypeSet is a fixed-size set of object types.
type TypeSet [NumObjectTypes]bool

// NewTypeSet returns a set holding the given types.
func NewTypeSet(types ...ObjectType) TypeSet {
	var s TypeSet
	for _, t := range types {
		if t.Valid() {
			s[t] = true
		}
	}
	return s
}

// Has reports whether t is in the set.
func (s TypeSet) Has(t ObjectType) bool {
	return t >= 0 && t < NumObjectTypes && s[t]
}

// Types returns the members of the set in display order.
func (s TypeSet) Types() []ObjectType {
	out := make([]ObjectType, 0)
	for t := ObjectTypeUnit; t < NumObjectTypes; t++ {
		if s[t] {
			out = append(out, t)
		}
	}
	return out
}

// Capability describes where a type may sit in the repository hierarchy.
type Capability struct {
	// AllowedParents is checked when the type is reached while descending:
	// the node it was reached from must be in this set.
	AllowedParents TypeSet

	// AnyParent disables the parent check.
	AnyParent bool

	// AllowedChildren is checked when the type is reached while ascending:
	// the node it was reached from must be in this set.
	AllowedChildren TypeSet
}

// capabilities is the hierarchy matrix, indexed by type.
var capabilities = [NumObjectTypes]Capability{
	ObjectTypeUnit: {
		AllowedChildren: NewTypeSet(ObjectTypeSubject, ObjectTypeProject, ObjectTypeActor, ObjectTypeStakeholder),
	},
	ObjectTypeProject: {
		AllowedParents:  NewTypeSet(ObjectTypeUnit),
		AllowedChildren: NewTypeSet(ObjectTypeSubject, ObjectTypeProjectDocumentation, ObjectTypeStakeholder),
	},
	ObjectTypeSubject: {
		AllowedParents:  NewTypeSet(ObjectTypeUnit, ObjectTypeProject),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeItem),
	},
	ObjectTypeItem: {
		AllowedParents: NewTypeSet(ObjectTypeSubject),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeCaptureData, ObjectTypeModel,
			ObjectTypeScene, ObjectTypeIntermediaryFile),
	},
	ObjectTypeCaptureData: {
		AllowedParents:  NewTypeSet(ObjectTypeItem),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeModel, ObjectTypeActor),
	},
	ObjectTypeModel: {
		AllowedParents:  NewTypeSet(ObjectTypeItem, ObjectTypeCaptureData, ObjectTypeModel, ObjectTypeScene),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeScene, ObjectTypeModel, ObjectTypeActor),
	},
	ObjectTypeScene: {
		AllowedParents:  NewTypeSet(ObjectTypeItem, ObjectTypeModel),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeModel, ObjectTypeActor),
	},
	ObjectTypeIntermediaryFile: {
		AllowedParents:  NewTypeSet(ObjectTypeItem),
		AllowedChildren: NewTypeSet(ObjectTypeAsset, ObjectTypeActor),
	},
	ObjectTypeProjectDocumentation: {
		AllowedParents:  NewTypeSet(ObjectTypeProject),
		AllowedChildren: NewTypeSet(ObjectTypeAsset),
	},
	ObjectTypeActor: {
		AllowedParents: NewTypeSet(ObjectTypeUnit, ObjectTypeCaptureData, ObjectTypeModel,
			ObjectTypeScene, ObjectTypeIntermediaryFile),
	},
	ObjectTypeStakeholder: {
		AllowedParents: NewTypeSet(ObjectTypeUnit, ObjectTypeProject),
	},
	ObjectTypeAsset: {
		AnyParent:       true,
		AllowedChildren: NewTypeSet(ObjectTypeAssetVersion),
	},
	ObjectTypeAssetVersion: {
		AllowedParents: NewTypeSet(ObjectTypeAsset),
	},
}

// CapabilityOf returns the hierarchy capability of t. Unknown types get a
// zero Capability, which accepts no relatives.
func CapabilityOf(t ObjectType) Capability {
	if !t.Valid() {
		return Capability{}
	}
	return capabilities[t]
}

// ValidParent reports whether parent may appear directly above child.
//
// This is the check applied while descending from parent to child.
func ValidParent(child, parent ObjectType) bool {
	c := CapabilityOf(child)
	if !child.Valid() {
		return false
	}
	return c.AnyParent || c.AllowedParents.Has(parent)
}

// ValidChild reports whether child may appear directly below parent.
//
// This is the check applied while ascending from child to parent.
func ValidChild(parent, child ObjectType) bool {
	return CapabilityOf(parent).AllowedChildren.Has(child)
}
