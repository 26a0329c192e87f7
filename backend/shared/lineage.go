package shared

import "time"

// AttachLineage turns a generated artifact into a Shader, threading identity
// and parentage. With no parent the shader becomes the root of a new lineage.
func AttachLineage(gen Artifact, creatorID, prompt string, parent *Shader, ids IDGenerator, now func() time.Time) Shader {
	if ids == nil {
		ids = DefaultIDGenerator
	}
	if now == nil {
		now = time.Now
	}

	shader := Shader{
		ID:        ids(),
		CreatedAt: now().UTC().Truncate(time.Millisecond),
		CreatorID: creatorID,
		HTML:      gen.HTML,
		JSON:      gen.Config,
		Metadata:  map[string]interface{}{MetadataPrompt: prompt},
	}

	if parent != nil {
		shader.ParentID = parent.ID
		shader.LineageID = parent.LineageID
		if shader.LineageID == "" {
			// a parent without lineage is itself a root
			shader.LineageID = parent.ID
		}
	} else {
		shader.LineageID = shader.ID
	}

	return shader
}
