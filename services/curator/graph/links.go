// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"

	"github.com/AleutianAI/Curator/services/curator/model"
)

// link is a typed or universal reference to a related object. Exactly one of
// key and id is set.
type link struct {
	key *model.ObjectKey
	id  int64
}

func typedLink(t model.ObjectType, typedID int64) link {
	return link{key: &model.ObjectKey{Type: t, TypedID: typedID}}
}

func universalLink(id int64) link {
	return link{id: id}
}

// linkFunc gathers the implicit relatives of one object in one direction.
type linkFunc func(ctx context.Context, w *walker, so *model.SystemObject, obj model.Object) []link

// implicitLinks is the per-type table of relationships carried by typed
// columns rather than the cross-reference table.
var implicitLinks = [model.NumObjectTypes]struct {
	ancestors   linkFunc
	descendants linkFunc
}{
	model.ObjectTypeUnit: {
		descendants: withOwnedAssets(unitMembers),
	},
	model.ObjectTypeProject: {
		descendants: withOwnedAssets(projectDocumentation),
	},
	model.ObjectTypeSubject: {
		ancestors:   subjectUnit,
		descendants: withOwnedAssets(thumbnail),
	},
	model.ObjectTypeItem: {
		descendants: withOwnedAssets(thumbnail),
	},
	model.ObjectTypeCaptureData: {
		descendants: withOwnedAssets(thumbnail),
	},
	model.ObjectTypeModel: {
		descendants: withOwnedAssets(thumbnail),
	},
	model.ObjectTypeScene: {
		descendants: withOwnedAssets(thumbnail),
	},
	model.ObjectTypeIntermediaryFile: {
		descendants: withOwnedAssets(nil),
	},
	model.ObjectTypeProjectDocumentation: {
		ancestors:   documentationProject,
		descendants: withOwnedAssets(nil),
	},
	model.ObjectTypeAsset: {
		ancestors:   assetOwner,
		descendants: assetVersions,
	},
	model.ObjectTypeAssetVersion: {
		ancestors: versionAsset,
	},
	model.ObjectTypeActor: {
		ancestors:   actorUnit,
		descendants: withOwnedAssets(nil),
	},
	model.ObjectTypeStakeholder: {
		descendants: withOwnedAssets(nil),
	},
}

// gatherImplicit returns the implicit relatives of obj for the walker's
// current direction.
func gatherImplicit(ctx context.Context, w *walker, so *model.SystemObject, obj model.Object) []link {
	if !so.Type.Valid() {
		return nil
	}
	entry := implicitLinks[so.Type]
	fn := entry.descendants
	if w.pass == ModeAncestors {
		fn = entry.ancestors
	}
	if fn == nil {
		return nil
	}
	return fn(ctx, w, so, obj)
}

// withOwnedAssets adds the assets owned by the object to the links of next.
func withOwnedAssets(next linkFunc) linkFunc {
	return func(ctx context.Context, w *walker, so *model.SystemObject, obj model.Object) []link {
		var links []link
		if next != nil {
			links = next(ctx, w, so, obj)
		}
		assets, err := w.repo.ListAssetsByOwner(ctx, so.ID)
		if err != nil {
			w.lookupFailed(so.ID, "owned assets", err)
			return links
		}
		for _, a := range assets {
			links = append(links, typedLink(model.ObjectTypeAsset, a.ID))
		}
		return links
	}
}

func thumbnail(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	var thumb *int64
	switch v := obj.(type) {
	case *model.Subject:
		thumb = v.AssetThumbnailID
	case *model.Item:
		thumb = v.AssetThumbnailID
	case *model.CaptureData:
		thumb = v.AssetThumbnailID
	case *model.Model:
		thumb = v.AssetThumbnailID
	case *model.Scene:
		thumb = v.AssetThumbnailID
	}
	if thumb == nil {
		return nil
	}
	return []link{typedLink(model.ObjectTypeAsset, *thumb)}
}

func unitMembers(ctx context.Context, w *walker, so *model.SystemObject, _ model.Object) []link {
	var links []link
	subjects, err := w.repo.ListSubjectsByUnit(ctx, so.TypedID)
	if err != nil {
		w.lookupFailed(so.ID, "unit subjects", err)
	}
	for _, s := range subjects {
		links = append(links, typedLink(model.ObjectTypeSubject, s.ID))
	}
	actors, err := w.repo.ListActorsByUnit(ctx, so.TypedID)
	if err != nil {
		w.lookupFailed(so.ID, "unit actors", err)
	}
	for _, a := range actors {
		links = append(links, typedLink(model.ObjectTypeActor, a.ID))
	}
	return links
}

func projectDocumentation(ctx context.Context, w *walker, so *model.SystemObject, _ model.Object) []link {
	docs, err := w.repo.ListProjectDocumentation(ctx, so.TypedID)
	if err != nil {
		w.lookupFailed(so.ID, "project documentation", err)
		return nil
	}
	links := make([]link, 0, len(docs))
	for _, d := range docs {
		links = append(links, typedLink(model.ObjectTypeProjectDocumentation, d.ID))
	}
	return links
}

func assetVersions(ctx context.Context, w *walker, so *model.SystemObject, _ model.Object) []link {
	versions, err := w.repo.ListAssetVersions(ctx, so.TypedID)
	if err != nil {
		w.lookupFailed(so.ID, "asset versions", err)
		return nil
	}
	links := make([]link, 0, len(versions))
	for _, v := range versions {
		links = append(links, typedLink(model.ObjectTypeAssetVersion, v.ID))
	}
	return links
}

func subjectUnit(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	s, ok := obj.(*model.Subject)
	if !ok || s.UnitID == 0 {
		return nil
	}
	return []link{typedLink(model.ObjectTypeUnit, s.UnitID)}
}

func documentationProject(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	d, ok := obj.(*model.ProjectDocumentation)
	if !ok || d.ProjectID == 0 {
		return nil
	}
	return []link{typedLink(model.ObjectTypeProject, d.ProjectID)}
}

func actorUnit(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	a, ok := obj.(*model.Actor)
	if !ok || a.UnitID == nil {
		return nil
	}
	return []link{typedLink(model.ObjectTypeUnit, *a.UnitID)}
}

func assetOwner(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	a, ok := obj.(*model.Asset)
	if !ok || a.OwnerID == nil {
		return nil
	}
	return []link{universalLink(*a.OwnerID)}
}

func versionAsset(_ context.Context, _ *walker, _ *model.SystemObject, obj model.Object) []link {
	v, ok := obj.(*model.AssetVersion)
	if !ok || v.AssetID == 0 {
		return nil
	}
	return []link{typedLink(model.ObjectTypeAsset, v.AssetID)}
}
