package models

// Condition is a treatable condition shown on the public site.
type Condition struct {
	ID               string `json:"id" firestore:"-"`
	Name             string `json:"name" validate:"required"`
	Slug             string `json:"slug" validate:"required,slug"`
	Description      string `json:"description" validate:"required"`
	TreatmentOptions string `json:"treatmentOptions,omitempty"`
	// RelatedGuideSlugs is informational only; nothing checks that the guides exist.
	RelatedGuideSlugs []string `json:"relatedGuideSlugs"`
}

func (c *Condition) Kind() Kind      { return KindCondition }
func (c *Condition) Validate() error { return validateRecord(KindCondition, c) }

func (c *Condition) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"name":              c.Name,
		"slug":              c.Slug,
		"description":       c.Description,
		"relatedGuideSlugs": stringsOrEmpty(c.RelatedGuideSlugs),
	}
	putString(m, "treatmentOptions", c.TreatmentOptions)
	return m
}

func conditionFromData(id string, f fields) *Condition {
	return &Condition{
		ID:                id,
		Name:              f.getString("name"),
		Slug:              f.getString("slug"),
		Description:       f.getString("description"),
		TreatmentOptions:  f.getString("treatmentOptions"),
		RelatedGuideSlugs: f.getStrings("relatedGuideSlugs"),
	}
}

// GuideStep is one ordered instruction of a treatment guide.
type GuideStep struct {
	Title        string `json:"title" validate:"required"`
	Instructions string `json:"instructions" validate:"required"`
}

// TreatmentGuide is an exercise or self-care guide.
type TreatmentGuide struct {
	ID          string      `json:"id" firestore:"-"`
	Title       string      `json:"title" validate:"required"`
	Slug        string      `json:"slug" validate:"required,slug"`
	Description string      `json:"description" validate:"required"`
	ImageURL    string      `json:"imageUrl,omitempty" validate:"omitempty,url"`
	ImageID     string      `json:"imageId,omitempty"`
	VideoURL    string      `json:"videoUrl,omitempty" validate:"omitempty,url"`
	Steps       []GuideStep `json:"steps" validate:"dive"`
}

func (g *TreatmentGuide) Kind() Kind      { return KindTreatmentGuide }
func (g *TreatmentGuide) Validate() error { return validateRecord(KindTreatmentGuide, g) }

func (g *TreatmentGuide) ToData() map[string]interface{} {
	steps := make([]map[string]interface{}, 0, len(g.Steps))
	for _, s := range g.Steps {
		steps = append(steps, map[string]interface{}{"title": s.Title, "instructions": s.Instructions})
	}
	m := map[string]interface{}{
		"title":       g.Title,
		"slug":        g.Slug,
		"description": g.Description,
		"steps":       steps,
	}
	putString(m, "imageUrl", g.ImageURL)
	putString(m, "imageId", g.ImageID)
	putString(m, "videoUrl", g.VideoURL)
	return m
}

func treatmentGuideFromData(id string, f fields) *TreatmentGuide {
	g := &TreatmentGuide{
		ID:          id,
		Title:       f.getString("title"),
		Slug:        f.getString("slug"),
		Description: f.getString("description"),
		ImageURL:    f.getString("imageUrl"),
		ImageID:     f.getString("imageId"),
		VideoURL:    f.getString("videoUrl"),
	}
	for _, s := range f.getMaps("steps") {
		g.Steps = append(g.Steps, GuideStep{Title: s.getString("title"), Instructions: s.getString("instructions")})
	}
	return g
}

// Therapist is a clinic practitioner; appointments and availability live under it.
type Therapist struct {
	ID              string   `json:"id" firestore:"-"`
	Name            string   `json:"name" validate:"required"`
	Title           string   `json:"title" validate:"required"`
	Bio             string   `json:"bio,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty" validate:"omitempty,url"`
	Specializations []string `json:"specializations"`
}

func (t *Therapist) Kind() Kind      { return KindTherapist }
func (t *Therapist) Validate() error { return validateRecord(KindTherapist, t) }

func (t *Therapist) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"name":            t.Name,
		"title":           t.Title,
		"specializations": stringsOrEmpty(t.Specializations),
	}
	putString(m, "bio", t.Bio)
	putString(m, "imageUrl", t.ImageURL)
	return m
}

func therapistFromData(id string, f fields) *Therapist {
	return &Therapist{
		ID:              id,
		Name:            f.getString("name"),
		Title:           f.getString("title"),
		Bio:             f.getString("bio"),
		ImageURL:        f.getString("imageUrl"),
		Specializations: f.getStrings("specializations"),
	}
}

// Product is a shop item.
type Product struct {
	ID          string  `json:"id" firestore:"-"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price" validate:"gt=0"`
	ImageURL    string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

func (p *Product) Kind() Kind      { return KindProduct }
func (p *Product) Validate() error { return validateRecord(KindProduct, p) }

func (p *Product) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"name":  p.Name,
		"price": p.Price,
	}
	putString(m, "description", p.Description)
	putString(m, "imageUrl", p.ImageURL)
	return m
}

func productFromData(id string, f fields) *Product {
	return &Product{
		ID:          id,
		Name:        f.getString("name"),
		Description: f.getString("description"),
		Price:       f.getFloat("price"),
		ImageURL:    f.getString("imageUrl"),
	}
}

// Social platforms a link may point to. At most one link exists per platform.
const (
	PlatformTwitter   = "twitter"
	PlatformFacebook  = "facebook"
	PlatformInstagram = "instagram"
)

// SocialLink is a footer link to one of the clinic's social profiles.
type SocialLink struct {
	ID       string `json:"id" firestore:"-"`
	Platform string `json:"platform" validate:"oneof=twitter facebook instagram"`
	URL      string `json:"url" validate:"required,url"`
}

func (s *SocialLink) Kind() Kind      { return KindSocialLink }
func (s *SocialLink) Validate() error { return validateRecord(KindSocialLink, s) }

func (s *SocialLink) ToData() map[string]interface{} {
	return map[string]interface{}{"platform": s.Platform, "url": s.URL}
}

func socialLinkFromData(id string, f fields) *SocialLink {
	return &SocialLink{ID: id, Platform: f.getString("platform"), URL: f.getString("url")}
}

// ContactInformation is the single contactInformation/main document.
type ContactInformation struct {
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	Email        string `json:"email" validate:"omitempty,email"`
	OpeningHours string `json:"openingHours,omitempty"`
}

func (c *ContactInformation) Kind() Kind      { return KindContactInformation }
func (c *ContactInformation) Validate() error { return validateRecord(KindContactInformation, c) }

func (c *ContactInformation) ToData() map[string]interface{} {
	m := map[string]interface{}{
		"address": c.Address,
		"phone":   c.Phone,
		"email":   c.Email,
	}
	putString(m, "openingHours", c.OpeningHours)
	return m
}

func contactInformationFromData(f fields) *ContactInformation {
	return &ContactInformation{
		Address:      f.getString("address"),
		Phone:        f.getString("phone"),
		Email:        f.getString("email"),
		OpeningHours: f.getString("openingHours"),
	}
}
